package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFilter_ParsesAllFields(t *testing.T) {
	filter, err := buildFilter("orders.created", "ord_abc", "2026-01-01T00:00:00Z", "2026-01-02T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "orders.created", filter.Type)
	assert.Equal(t, "ord_abc", filter.OrderID)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), filter.From)
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), filter.To)
}

func TestBuildFilter_EmptyFiltersAreZeroValue(t *testing.T) {
	filter, err := buildFilter("", "", "", "")
	require.NoError(t, err)
	assert.Empty(t, filter.Type)
	assert.Empty(t, filter.OrderID)
	assert.True(t, filter.From.IsZero())
	assert.True(t, filter.To.IsZero())
}

func TestBuildFilter_RejectsInvalidTimestamp(t *testing.T) {
	_, err := buildFilter("", "", "not-a-timestamp", "")
	assert.Error(t, err)
}

func TestRoutingTable_CoversEveryProducedEventType(t *testing.T) {
	for _, eventType := range []string{
		"orders.created",
		"orders.cancelled",
		"inventory.reserve.approved",
		"inventory.reserve.rejected",
		"notification.sent",
	} {
		route, ok := routingTable[eventType]
		assert.True(t, ok, "expected routing entry for %s", eventType)
		assert.NotEmpty(t, route.Exchange)
		assert.NotEmpty(t, route.RoutingKey)
	}
}
