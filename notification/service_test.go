package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindFor_MapsAllFourEventTypes(t *testing.T) {
	cases := map[string]string{
		"orders.created":             "order_created",
		"inventory.reserve.approved": "order_confirmed",
		"inventory.reserve.rejected": "order_rejected",
		"orders.cancelled":           "order_cancelled",
	}
	for eventType, wantKind := range cases {
		kind, ok := kindFor(eventType)
		assert.True(t, ok, "expected %s to map to a kind", eventType)
		assert.Equal(t, wantKind, kind)
	}
}

func TestKindFor_UnknownTypeIsUnmapped(t *testing.T) {
	_, ok := kindFor("something.else")
	assert.False(t, ok)
}
