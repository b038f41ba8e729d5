package store

import (
	"context"

	"github.com/nexacart/order-events/eventing/envelope"
	"github.com/nexacart/order-events/resilience/breaker"
)

// guardedStore routes writes through a circuit breaker. When the
// breaker is open, Append fails fast with breaker.ErrOpen, which
// surfaces as a transient error on the caller's retry path.
type guardedStore struct {
	EventStore
	cb *breaker.CircuitBreaker
}

// WithBreaker guards inner's Append with cb. Reads pass through
// unguarded: a failing read already surfaces to its caller, and replay
// queries must stay usable while the write side is tripped.
func WithBreaker(inner EventStore, cb *breaker.CircuitBreaker) EventStore {
	return &guardedStore{EventStore: inner, cb: cb}
}

func (g *guardedStore) Append(ctx context.Context, env *envelope.Envelope) error {
	_, err := g.cb.ExecuteContext(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, g.EventStore.Append(ctx, env)
	})
	return err
}
