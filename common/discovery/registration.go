package discovery

import (
	"context"
	"log/slog"
	"time"
)

// Registration tracks one service instance's Consul (or in-memory)
// registration and keeps it alive with periodic health checks —
// grounded on the teacher's gateway/registry.go ServiceRegistration.
type Registration struct {
	registry    Registry
	instanceID  string
	serviceName string
	stopChan    chan struct{}
}

// Register registers instanceID/serviceName/addr and starts a 1s
// health-check ticker that keeps the registration alive until
// Deregister is called.
func Register(ctx context.Context, registry Registry, logger *slog.Logger, instanceID, serviceName, addr string) (*Registration, error) {
	if err := registry.Register(ctx, instanceID, serviceName, addr); err != nil {
		return nil, err
	}

	r := &Registration{
		registry:    registry,
		instanceID:  instanceID,
		serviceName: serviceName,
		stopChan:    make(chan struct{}),
	}
	go r.healthCheckLoop(logger)
	return r, nil
}

func (r *Registration) healthCheckLoop(logger *slog.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			if err := r.registry.HealthCheck(r.instanceID, r.serviceName); err != nil {
				logger.Warn("service discovery health check failed", slog.Any("error", err))
			}
		}
	}
}

// Deregister stops the health-check loop and removes the instance
// from the registry.
func (r *Registration) Deregister(ctx context.Context) error {
	close(r.stopChan)
	return r.registry.Deregister(ctx, r.instanceID, r.serviceName)
}
