// Package metrics builds the Prometheus collectors shared by every service:
// HTTP surface metrics, broker consumer/publish metrics, and per-service
// business counters.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics contains HTTP-related Prometheus metrics.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics creates HTTP metrics for a service.
func NewHTTPMetrics(serviceName string) *HTTPMetrics {
	return &HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    serviceName + "_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordHTTPRequest records an HTTP request metric.
func (m *HTTPMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// BrokerMetrics instruments the consumer runtime and publish path, shared
// by every queue a service binds.
type BrokerMetrics struct {
	PublishedTotal *prometheus.CounterVec
	ConsumedTotal  *prometheus.CounterVec
	RetriedTotal   *prometheus.CounterVec
	DLQTotal       *prometheus.CounterVec
	BreakerOpen    *prometheus.GaugeVec
}

// NewBrokerMetrics creates broker metrics for a service.
func NewBrokerMetrics(serviceName string) *BrokerMetrics {
	return &BrokerMetrics{
		PublishedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_events_published_total",
				Help: "Total number of envelopes published",
			},
			[]string{"exchange", "routing_key"},
		),
		ConsumedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_events_consumed_total",
				Help: "Total number of deliveries handled, by outcome",
			},
			[]string{"queue", "outcome"},
		),
		RetriedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_events_retried_total",
				Help: "Total number of deliveries routed to a retry queue",
			},
			[]string{"queue"},
		),
		DLQTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_events_dlq_total",
				Help: "Total number of deliveries routed to a dead-letter queue",
			},
			[]string{"queue", "reason"},
		),
		BreakerOpen: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: serviceName + "_circuit_breaker_open",
				Help: "1 if the named circuit breaker is open, else 0",
			},
			[]string{"breaker"},
		),
	}
}

// BusinessMetrics holds the per-service domain counters named in
// SPEC_FULL.md §6 (orders_created_total, inventory_approved_total, ...).
// Each service constructs only the counters it emits.
type BusinessMetrics struct {
	counters map[string]prometheus.Counter
}

// NewBusinessMetrics creates one counter per name, prefixed with
// serviceName, e.g. NewBusinessMetrics("orders", "orders_created_total").
func NewBusinessMetrics(serviceName string, names ...string) *BusinessMetrics {
	counters := make(map[string]prometheus.Counter, len(names))
	for _, name := range names {
		counters[name] = promauto.NewCounter(prometheus.CounterOpts{
			Name: serviceName + "_" + name,
			Help: "Business counter " + name,
		})
	}
	return &BusinessMetrics{counters: counters}
}

// Inc increments the named counter. No-op on a nil receiver or if the
// counter was not registered by NewBusinessMetrics — callers should
// register every name they intend to increment.
func (m *BusinessMetrics) Inc(name string) {
	if m == nil {
		return
	}
	if c, ok := m.counters[name]; ok {
		c.Inc()
	}
}
