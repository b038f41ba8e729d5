package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nexacart/order-events/eventing/envelope"
)

// SQLiteStore is the Notification service's event store backend —
// same database/sql idiom as PostgresStore, a single-file engine
// appropriate for a service with no fan-out read load.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	event_id       TEXT PRIMARY KEY,
	type           TEXT NOT NULL,
	version        INTEGER NOT NULL,
	occurred_at    TEXT NOT NULL,
	producer       TEXT NOT NULL,
	correlation_id TEXT NOT NULL,
	order_id       TEXT NOT NULL,
	payload        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_order_id_idx ON events (order_id);
CREATE INDEX IF NOT EXISTS events_occurred_at_idx ON events (occurred_at, event_id);
`

// NewSQLiteStore opens dataSourceName (a file path, or ":memory:" for
// tests) and ensures the events table exists.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("ensure event store schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, env *envelope.Envelope) error {
	const query = `
		INSERT OR IGNORE INTO events (event_id, type, version, occurred_at, producer, correlation_id, order_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		env.EventID, env.Type, env.Version, env.OccurredAt.Format(timeLayout), env.Producer, env.CorrelationID,
		extractOrderID(env), string(env.Payload),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *SQLiteStore) FindByEventID(ctx context.Context, eventID string) (*envelope.Envelope, error) {
	const query = `SELECT event_id, type, version, occurred_at, producer, correlation_id, payload FROM events WHERE event_id = ?`
	row := s.db.QueryRowContext(ctx, query, eventID)
	env, err := scanSQLiteEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return env, err
}

func (s *SQLiteStore) Find(ctx context.Context, filter Filter) ([]*envelope.Envelope, error) {
	query := `SELECT event_id, type, version, occurred_at, producer, correlation_id, payload FROM events WHERE 1=1`
	var args []any
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.OrderID != "" {
		query += " AND order_id = ?"
		args = append(args, filter.OrderID)
	}
	if !filter.From.IsZero() {
		query += " AND occurred_at >= ?"
		args = append(args, filter.From.Format(timeLayout))
	}
	if !filter.To.IsZero() {
		query += " AND occurred_at <= ?"
		args = append(args, filter.To.Format(timeLayout))
	}
	query += " ORDER BY occurred_at ASC, event_id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	defer rows.Close()

	var results []*envelope.Envelope
	for rows.Next() {
		env, err := scanSQLiteEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		results = append(results, env)
	}
	return results, rows.Err()
}

func scanSQLiteEvent(row rowScanner) (*envelope.Envelope, error) {
	var env envelope.Envelope
	var occurredAt, payload string
	if err := row.Scan(&env.EventID, &env.Type, &env.Version, &occurredAt, &env.Producer, &env.CorrelationID, &payload); err != nil {
		return nil, err
	}
	parsed, err := parseTime(occurredAt)
	if err != nil {
		return nil, fmt.Errorf("parse occurred_at: %w", err)
	}
	env.OccurredAt = parsed
	env.Payload = json.RawMessage(payload)
	return &env, nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
