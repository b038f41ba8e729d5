// Package discovery registers a running service instance for operator
// visibility. No component in this module looks another service up
// through it — orders, inventory, and notification communicate only
// through the broker — so Registry exists purely so operators can see
// which instances are alive.
package discovery

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Registry is implemented by consul.Registry (production) and
// inmem.Registry (tests / local development without Consul).
type Registry interface {
	Register(ctx context.Context, instanceID, serviceName, hostPort string) error
	Deregister(ctx context.Context, instanceID, serviceName string) error
	Discover(ctx context.Context, serviceName string) ([]string, error)
	HealthCheck(instanceID, serviceName string) error
}

// GenerateInstanceID builds a unique id for the calling process, e.g.
// "orders-3917628103".
func GenerateInstanceID(serviceName string) string {
	return fmt.Sprintf("%s-%d", serviceName, rand.New(rand.NewSource(time.Now().UnixNano())).Int())
}
