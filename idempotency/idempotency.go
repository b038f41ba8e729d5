// Package idempotency implements the HTTP write idempotency discipline
// from spec.md §4.4.1: an Idempotency-Key maps to the orderId it
// originally produced, scoped by a TTL (24h by design default), so a
// repeated key returns the same order instead of creating a new one.
package idempotency

import (
	"context"
	"time"
)

// DefaultTTL is the design default from spec.md §3.
const DefaultTTL = 24 * time.Hour

// Record is what a Get returns: the orderId a key originally produced,
// plus its current status at time of lookup.
type Record struct {
	OrderID string
	Status  string
}

// Store maps Idempotency-Key -> Record, scoped by TTL. Implementations
// must treat an expired key the same as a missing one.
type Store interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	Put(ctx context.Context, key string, rec Record, ttl time.Duration) error
}
