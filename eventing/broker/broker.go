// Package broker implements the messaging substrate: six topic exchanges,
// per-queue retry/DLQ triads, a circuit-breaker-guarded publisher, and a
// consumer runtime that turns handler decisions into ack/retry/dlq.
package broker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nexacart/order-events/common/metrics"
	"github.com/nexacart/order-events/resilience/breaker"
)

// Connect dials RabbitMQ and returns an open channel plus a close func
// that shuts the channel then the connection down, in that order.
func Connect(user, pass, host, port string) (*amqp.Channel, func() error, error) {
	address := fmt.Sprintf("amqp://%s:%s@%s:%s/", user, pass, host, port)

	conn, err := amqp.Dial(address)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	close := func() error {
		if err := ch.Close(); err != nil {
			return err
		}
		return conn.Close()
	}

	return ch, close, nil
}

// Publisher serializes publishes through a single AMQP channel (channels
// are not safe for concurrent use by multiple publishers) and wraps every
// publish in a circuit breaker.
type Publisher struct {
	mu      sync.Mutex
	ch      *amqp.Channel
	cb      *breaker.CircuitBreaker
	metrics *metrics.BrokerMetrics
}

// NewPublisher wraps ch with a circuit breaker named for observability
// and metrics recording.
func NewPublisher(ch *amqp.Channel, cb *breaker.CircuitBreaker, m *metrics.BrokerMetrics) *Publisher {
	return &Publisher{ch: ch, cb: cb, metrics: m}
}

// Publish marks the message persistent and content-type application/json,
// stamps x-correlation-id and x-group-id, and publishes through the
// circuit breaker. extraHeaders may add replay/attempt headers; it must
// not be nil if the caller wants specific overrides, an empty amqp.Table
// is fine.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, body []byte, correlationID, groupID string, extraHeaders amqp.Table) error {
	headers := amqp.Table{}
	for k, v := range extraHeaders {
		headers[k] = v
	}
	headers["x-correlation-id"] = correlationID
	headers["x-group-id"] = groupID
	injectTraceContext(ctx, headers)

	_, err := p.cb.Execute(func() (interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		return nil, p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
			Body:         body,
		})
	})
	if err != nil {
		return fmt.Errorf("publish %s/%s: %w", exchange, routingKey, err)
	}
	if p.metrics != nil {
		p.metrics.PublishedTotal.WithLabelValues(exchange, routingKey).Inc()
	}
	return nil
}
