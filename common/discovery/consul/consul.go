// Package consul registers service instances with a Consul agent for
// operator visibility (service discovery UI / health dashboard), not for
// inter-service calls.
package consul

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	consul "github.com/hashicorp/consul/api"

	"github.com/nexacart/order-events/common/discovery"
)

// Registry wraps a Consul API client behind discovery.Registry.
type Registry struct {
	client *consul.Client
}

// NewRegistry dials the Consul agent at addr.
func NewRegistry(addr string) (*Registry, error) {
	cfg := consul.DefaultConfig()
	cfg.Address = addr

	client, err := consul.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}
	return &Registry{client: client}, nil
}

// Register advertises instanceID/serviceName at hostPort with a 5s TTL
// health check.
func (r *Registry) Register(ctx context.Context, instanceID, serviceName, hostPort string) error {
	parts := strings.Split(hostPort, ":")
	if len(parts) != 2 {
		return fmt.Errorf("invalid hostPort %q, expected host:port", hostPort)
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("invalid port in %q: %w", hostPort, err)
	}

	return r.client.Agent().ServiceRegister(&consul.AgentServiceRegistration{
		ID:      instanceID,
		Name:    serviceName,
		Address: parts[0],
		Port:    port,
		Check: &consul.AgentServiceCheck{
			CheckID:                        instanceID,
			TLSSkipVerify:                  true,
			TTL:                            "5s",
			DeregisterCriticalServiceAfter: "10s",
		},
	})
}

// Deregister removes instanceID from Consul.
func (r *Registry) Deregister(ctx context.Context, instanceID, serviceName string) error {
	return r.client.Agent().ServiceDeregister(instanceID)
}

// Discover lists healthy addresses for serviceName. Unused by any service
// in this module today — kept so a future inter-service path has
// somewhere to plug in without inventing a new registry shape.
func (r *Registry) Discover(ctx context.Context, serviceName string) ([]string, error) {
	services, _, err := r.client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(services))
	for _, svc := range services {
		addresses = append(addresses, fmt.Sprintf("%s:%d", svc.Service.Address, svc.Service.Port))
	}
	return addresses, nil
}

// HealthCheck renews the TTL check for instanceID.
func (r *Registry) HealthCheck(instanceID, serviceName string) error {
	return r.client.Agent().UpdateTTL(instanceID, "online", consul.HealthPassing)
}

var _ discovery.Registry = (*Registry)(nil)
