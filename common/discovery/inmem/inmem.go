// Package inmem is a process-local discovery.Registry, used in tests and
// local development so Consul is not a hard dependency.
package inmem

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nexacart/order-events/common/discovery"
)

// registryTTL is the liveness window that HealthCheck renews by
// refreshing lastActive. Nothing in this package reads it: Discover
// returns every registered instance regardless of lastActive.
const registryTTL = 5 * time.Second

// Registry is an in-memory discovery.Registry.
type Registry struct {
	mu    sync.RWMutex
	addrs map[string]map[string]*instance
}

type instance struct {
	hostPort   string
	lastActive time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{addrs: map[string]map[string]*instance{}}
}

// Register adds or replaces an instance.
func (r *Registry) Register(ctx context.Context, instanceID, serviceName, hostPort string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.addrs[serviceName]; !ok {
		r.addrs[serviceName] = map[string]*instance{}
	}
	r.addrs[serviceName][instanceID] = &instance{hostPort: hostPort, lastActive: time.Now()}
	return nil
}

// Deregister removes an instance.
func (r *Registry) Deregister(ctx context.Context, instanceID, serviceName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.addrs[serviceName]; ok {
		delete(r.addrs[serviceName], instanceID)
	}
	return nil
}

// HealthCheck refreshes lastActive for an instance.
func (r *Registry) HealthCheck(instanceID, serviceName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	instances, ok := r.addrs[serviceName]
	if !ok {
		return errors.New("service is not registered yet")
	}
	inst, ok := instances[instanceID]
	if !ok {
		return errors.New("service instance is not registered yet")
	}
	inst.lastActive = time.Now()
	return nil
}

// Discover returns every registered address for serviceName, ignoring TTL.
func (r *Registry) Discover(ctx context.Context, serviceName string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.addrs[serviceName]) == 0 {
		return nil, errors.New("no service address found")
	}
	res := make([]string, 0, len(r.addrs[serviceName]))
	for _, inst := range r.addrs[serviceName] {
		res = append(res, inst.hostPort)
	}
	return res, nil
}

var _ discovery.Registry = (*Registry)(nil)
