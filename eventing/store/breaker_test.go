package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexacart/order-events/eventing/envelope"
	"github.com/nexacart/order-events/resilience/breaker"
)

type stubStore struct {
	appendErr error
	appends   int
}

func (s *stubStore) Append(ctx context.Context, env *envelope.Envelope) error {
	s.appends++
	return s.appendErr
}

func (s *stubStore) FindByEventID(ctx context.Context, eventID string) (*envelope.Envelope, error) {
	return nil, ErrNotFound
}

func (s *stubStore) Find(ctx context.Context, filter Filter) ([]*envelope.Envelope, error) {
	return nil, nil
}

func (s *stubStore) Ping(ctx context.Context) error { return nil }
func (s *stubStore) Close() error                   { return nil }

func TestWithBreaker_OpenBreakerFailsFastWithoutReachingStore(t *testing.T) {
	inner := &stubStore{appendErr: errors.New("connection reset")}
	cb := breaker.New("test-db", breaker.Options{FailureThreshold: 0.5, VolumeThreshold: 2, OpenTimeout: time.Hour})
	guarded := WithBreaker(inner, cb)

	ctx := context.Background()
	env := makeEnvelope("evt-cb", "ord-cb")

	require.Error(t, guarded.Append(ctx, env))
	require.Error(t, guarded.Append(ctx, env))
	require.Equal(t, breaker.Open, cb.State())

	callsBefore := inner.appends
	err := guarded.Append(ctx, env)
	assert.ErrorIs(t, err, breaker.ErrOpen)
	assert.Equal(t, callsBefore, inner.appends)
}

func TestWithBreaker_ReadsBypassTheBreaker(t *testing.T) {
	inner := &stubStore{appendErr: errors.New("down")}
	cb := breaker.New("test-db", breaker.Options{FailureThreshold: 0.5, VolumeThreshold: 1, OpenTimeout: time.Hour})
	guarded := WithBreaker(inner, cb)

	ctx := context.Background()
	require.Error(t, guarded.Append(ctx, makeEnvelope("evt-x", "ord-x")))
	require.Equal(t, breaker.Open, cb.State())

	_, err := guarded.FindByEventID(ctx, "evt-x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, guarded.Ping(ctx))
}
