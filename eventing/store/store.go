// Package store provides the append-only event store (C3): every
// produced and consumed envelope is persisted, keyed by eventId with
// unique-index idempotency, queryable for the replay tool.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nexacart/order-events/eventing/envelope"
)

// ErrNotFound is returned by FindByEventID when no row matches.
var ErrNotFound = errors.New("event not found")

// Filter narrows a replay query. Zero values mean "unset": an empty
// Type/OrderID matches any, a zero From/To leaves that bound open.
type Filter struct {
	Type    string
	OrderID string
	From    time.Time
	To      time.Time
}

// EventStore is the append-only persistence contract every service
// backend (Mongo, Postgres, SQLite) implements identically.
type EventStore interface {
	// Append inserts env. A duplicate eventId is treated as success —
	// the idempotent-append invariant from spec.md §4.3.
	Append(ctx context.Context, env *envelope.Envelope) error
	// FindByEventID returns ErrNotFound if no row has that eventId.
	FindByEventID(ctx context.Context, eventID string) (*envelope.Envelope, error)
	// Find returns envelopes matching filter, ordered by
	// (occurredAt ASC, eventId ASC), for the replay tool.
	Find(ctx context.Context, filter Filter) ([]*envelope.Envelope, error)
	// Ping checks the backend is reachable, for readiness probes.
	Ping(ctx context.Context) error
	Close() error
}
