package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexacart/order-events/eventing/envelope"
)

func mustParseRFC3339(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func makeEnvelope(eventID, orderID string) *envelope.Envelope {
	return &envelope.Envelope{
		EventID:       eventID,
		Type:          "orders.created",
		Version:       1,
		Producer:      "orders",
		CorrelationID: "corr-" + eventID,
		Payload:       []byte(`{"orderId":"` + orderID + `","customerId":"c1","items":[{"productId":"p1","quantity":1,"unitPrice":10}],"total":10}`),
	}
}

func TestSQLiteStore_AppendIsIdempotent(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	env := makeEnvelope("evt-1", "ord-1")
	env.OccurredAt = mustParseRFC3339(t, "2026-01-01T00:00:00Z")

	require.NoError(t, s.Append(ctx, env))
	require.NoError(t, s.Append(ctx, env)) // duplicate eventId is a no-op

	found, err := s.FindByEventID(ctx, "evt-1")
	require.NoError(t, err)
	require.Equal(t, "ord-1", extractOrderID(found))
}

func TestSQLiteStore_FindByEventID_NotFound(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.FindByEventID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Find_OrderedByOccurredAtThenEventID(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	e1 := makeEnvelope("evt-a", "ord-9")
	e1.OccurredAt = mustParseRFC3339(t, "2026-01-01T00:00:01Z")
	e2 := makeEnvelope("evt-b", "ord-9")
	e2.OccurredAt = mustParseRFC3339(t, "2026-01-01T00:00:00Z")

	require.NoError(t, s.Append(ctx, e1))
	require.NoError(t, s.Append(ctx, e2))

	results, err := s.Find(ctx, Filter{OrderID: "ord-9"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "evt-b", results[0].EventID)
	require.Equal(t, "evt-a", results[1].EventID)
}
