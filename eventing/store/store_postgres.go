package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/nexacart/order-events/eventing/envelope"
)

// PostgresStore is the Inventory service's event store backend,
// grounded on the teacher's raw-SQL database/sql idiom.
type PostgresStore struct {
	db *sql.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS events (
	event_id       TEXT PRIMARY KEY,
	type           TEXT NOT NULL,
	version        INT NOT NULL,
	occurred_at    TIMESTAMPTZ NOT NULL,
	producer       TEXT NOT NULL,
	correlation_id TEXT NOT NULL,
	order_id       TEXT NOT NULL,
	payload        JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS events_order_id_idx ON events (order_id);
CREATE INDEX IF NOT EXISTS events_occurred_at_idx ON events (occurred_at, event_id);
`

// NewPostgresStore opens connectionString and ensures the events table
// and its indexes exist.
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		return nil, fmt.Errorf("ensure event store schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Append(ctx context.Context, env *envelope.Envelope) error {
	const query = `
		INSERT INTO events (event_id, type, version, occurred_at, producer, correlation_id, order_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		env.EventID, env.Type, env.Version, env.OccurredAt, env.Producer, env.CorrelationID,
		extractOrderID(env), []byte(env.Payload),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByEventID(ctx context.Context, eventID string) (*envelope.Envelope, error) {
	const query = `SELECT event_id, type, version, occurred_at, producer, correlation_id, payload FROM events WHERE event_id = $1`
	row := s.db.QueryRowContext(ctx, query, eventID)
	env, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return env, err
}

func (s *PostgresStore) Find(ctx context.Context, filter Filter) ([]*envelope.Envelope, error) {
	query := `SELECT event_id, type, version, occurred_at, producer, correlation_id, payload FROM events WHERE 1=1`
	var args []any
	next := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND %s $%d", clause, len(args))
	}
	if filter.Type != "" {
		next("type =", filter.Type)
	}
	if filter.OrderID != "" {
		next("order_id =", filter.OrderID)
	}
	if !filter.From.IsZero() {
		next("occurred_at >=", filter.From)
	}
	if !filter.To.IsZero() {
		next("occurred_at <=", filter.To)
	}
	query += " ORDER BY occurred_at ASC, event_id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	defer rows.Close()

	var results []*envelope.Envelope
	for rows.Next() {
		env, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		results = append(results, env)
	}
	return results, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*envelope.Envelope, error) {
	var env envelope.Envelope
	var payload []byte
	if err := row.Scan(&env.EventID, &env.Type, &env.Version, &env.OccurredAt, &env.Producer, &env.CorrelationID, &payload); err != nil {
		return nil, err
	}
	env.Payload = json.RawMessage(payload)
	return &env, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
