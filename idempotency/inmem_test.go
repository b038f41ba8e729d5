package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_PutThenGet(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "key-1", Record{OrderID: "ord-1", Status: "PENDING"}, time.Hour))

	rec, ok, err := s.Get(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ord-1", rec.OrderID)
}

func TestInMemoryStore_ExpiredKeyMissesLikeAbsent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "key-2", Record{OrderID: "ord-2", Status: "PENDING"}, -time.Second))

	_, ok, err := s.Get(ctx, "key-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemoryStore_UnknownKeyMisses(t *testing.T) {
	s := NewInMemoryStore()
	_, ok, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
