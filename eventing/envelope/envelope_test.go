package envelope

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

func TestSchemaTotality(t *testing.T) {
	r := NewRegistry()
	types := []struct {
		typ     string
		version int
	}{
		{"orders.created", 1},
		{"orders.cancelled", 1},
		{"inventory.reserve.approved", 1},
		{"inventory.reserve.rejected", 1},
		{"notification.sent", 1},
	}
	for _, tc := range types {
		assert.True(t, r.Has(tc.typ, tc.version), "missing schema for %s.v%d", tc.typ, tc.version)
	}
	assert.False(t, r.Has("unknown.type", 1))
}

func TestValidateOutgoing_OrdersCreated_Valid(t *testing.T) {
	r := NewRegistry()
	payload := map[string]any{
		"orderId":    "ord_1",
		"customerId": "cust_1",
		"items": []map[string]any{
			{"productId": "p1", "quantity": 2, "unitPrice": 100.0},
		},
		"total": 200.0,
	}
	env, err := New("orders", "orders.created", 1, "corr-1", payload, fixedNow)
	require.NoError(t, err)

	schemaErr := r.ValidateOutgoing(env)
	assert.Nil(t, schemaErr)
}

func TestValidateOutgoing_OrdersCreated_MissingFields(t *testing.T) {
	r := NewRegistry()
	env, err := New("orders", "orders.created", 1, "corr-1", map[string]any{"orderId": "x"}, fixedNow)
	require.NoError(t, err)

	schemaErr := r.ValidateOutgoing(env)
	require.NotNil(t, schemaErr)
	assert.Equal(t, "orders.created", schemaErr.Type)
}

func TestValidateIncoming_RoundTrip(t *testing.T) {
	r := NewRegistry()
	payload := map[string]any{"orderId": "ord_1", "reservationId": "res_1"}
	env, err := New("inventory", "inventory.reserve.approved", 1, "corr-2", payload, fixedNow)
	require.NoError(t, err)
	require.Nil(t, r.ValidateOutgoing(env))

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	parsed, schemaErr := r.ValidateIncoming(raw)
	require.Nil(t, schemaErr)
	assert.Equal(t, env.EventID, parsed.EventID)
	assert.Equal(t, env.Type, parsed.Type)
	assert.Equal(t, env.Version, parsed.Version)
	assert.Equal(t, env.CorrelationID, parsed.CorrelationID)
	assert.JSONEq(t, string(env.Payload), string(parsed.Payload))
}

func TestParse_RejectsNonJSONBytes(t *testing.T) {
	_, schemaErr := Parse([]byte("not json at all"))
	require.NotNil(t, schemaErr)
	assert.Equal(t, "envelope", schemaErr.Field)
}

func TestParse_AcceptsEnvelopeWithoutValidating(t *testing.T) {
	// Parse only decodes; a structurally incomplete envelope is the
	// validator's problem, not the parser's.
	env, schemaErr := Parse([]byte(`{"type":"orders.created","version":1,"payload":{}}`))
	require.Nil(t, schemaErr)
	assert.Equal(t, "orders.created", env.Type)

	r := NewRegistry()
	assert.NotNil(t, r.ValidateOutgoing(env))
}

func TestValidateIncoming_InvalidNotificationKind(t *testing.T) {
	r := NewRegistry()
	payload := map[string]any{"orderId": "ord_1", "kind": "bogus", "channel": "log"}
	env, err := New("notification", "notification.sent", 1, "corr-3", payload, fixedNow)
	require.NoError(t, err)

	raw, _ := json.Marshal(env)
	_, schemaErr := r.ValidateIncoming(raw)
	require.NotNil(t, schemaErr)
	assert.Equal(t, "kind", schemaErr.Field)
}
