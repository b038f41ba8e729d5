package discovery_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexacart/order-events/common/discovery"
	"github.com/nexacart/order-events/common/discovery/inmem"
)

func TestRegisterAndDeregister(t *testing.T) {
	registry := inmem.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	registration, err := discovery.Register(ctx, registry, logger, "orders-1", "orders", "localhost:8080")
	require.NoError(t, err)

	addrs, err := registry.Discover(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:8080"}, addrs)

	require.NoError(t, registration.Deregister(ctx))

	_, err = registry.Discover(ctx, "orders")
	assert.Error(t, err)
}

func TestGenerateInstanceID(t *testing.T) {
	id := discovery.GenerateInstanceID("orders")
	assert.True(t, strings.HasPrefix(id, "orders-"))
	assert.NotEqual(t, "orders-", id)
}
