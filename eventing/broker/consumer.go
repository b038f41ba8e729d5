package broker

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/nexacart/order-events/common/metrics"
	"github.com/nexacart/order-events/eventing/envelope"
)

// Decision is what a Handler tells the consumer runtime to do with a
// delivery once it has been processed.
type Decision int

const (
	// Ack acknowledges the delivery; processing is complete.
	Ack Decision = iota
	// Retry schedules a delayed redelivery via the queue's retry queue,
	// or routes to the DLQ once maxRetries is exceeded.
	Retry
	// Dlq routes the delivery straight to the dead-letter queue.
	Dlq
)

// Handler processes one delivery and returns the consumer's next action.
// A handler that panics is treated as Retry.
type Handler func(ctx context.Context, env *envelope.Envelope, raw []byte) Decision

// defaultMaxRetries matches SPEC_FULL.md/spec.md §4.2's default of 3.
const defaultMaxRetries = 3

// defaultPrefetch matches spec.md §4.2's default of 1 (serial processing
// per queue).
const defaultPrefetch = 1

// Consumer binds a Handler to one logical queue and turns its Ack/Retry/
// Dlq decisions into AMQP acks, retry-queue republishes, or DLQ
// republishes.
type Consumer struct {
	ch         *amqp.Channel
	binding    QueueBinding
	registry   *envelope.Registry
	logger     *slog.Logger
	metrics    *metrics.BrokerMetrics
	maxRetries int
	prefetch   int
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithMaxRetries overrides the default retry budget (3). Zero is a
// valid budget: the first failure dead-letters.
func WithMaxRetries(n int) Option {
	return func(c *Consumer) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithPrefetch overrides the default prefetch (1).
func WithPrefetch(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.prefetch = n
		}
	}
}

// NewConsumer builds a Consumer for a queue binding declared via
// DeclareQueue.
func NewConsumer(ch *amqp.Channel, binding QueueBinding, registry *envelope.Registry, logger *slog.Logger, m *metrics.BrokerMetrics, opts ...Option) *Consumer {
	c := &Consumer{
		ch:         ch,
		binding:    binding,
		registry:   registry,
		logger:     logger,
		metrics:    m,
		maxRetries: defaultMaxRetries,
		prefetch:   defaultPrefetch,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Listen consumes binding.Queue until ctx is cancelled or the delivery
// channel closes. It blocks; callers run it in its own goroutine.
func (c *Consumer) Listen(ctx context.Context, handler Handler) error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return err
	}

	msgs, err := c.ch.Consume(c.binding.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			c.handleDelivery(ctx, d, handler)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler) {
	attempt := attemptFromHeaders(d.Headers)

	// A payload that isn't JSON at all may be a transport glitch, so it
	// takes the retry path; the retry budget keeps a persistently
	// malformed payload from looping forever. A well-formed envelope
	// that fails schema validation is quarantined immediately.
	env, parseErr := envelope.Parse(d.Body)
	if parseErr != nil {
		c.logger.Warn("undecodable delivery scheduled for retry",
			slog.String("queue", c.binding.Queue),
			slog.String("reason", parseErr.Error()),
		)
		c.retry(d, attempt)
		return
	}

	if schemaErr := c.registry.ValidateOutgoing(env); schemaErr != nil {
		c.logger.Warn("schema-invalid delivery routed to dlq",
			slog.String("queue", c.binding.Queue),
			slog.String("reason", schemaErr.Error()),
		)
		c.toDLQ(d, attempt, schemaErr.Error())
		return
	}

	spanCtx := extractTraceContext(ctx, d.Headers)
	tracer := otel.Tracer(c.binding.Queue)
	spanCtx, span := tracer.Start(spanCtx, "broker.consume "+c.binding.Queue)
	decision := c.safeInvoke(handler, spanCtx, env, d.Body)
	span.End()

	switch decision {
	case Ack:
		d.Ack(false)
		c.recordOutcome("ack")
	case Dlq:
		c.toDLQ(d, attempt, "handler requested dlq")
	case Retry:
		c.retry(d, attempt)
	default:
		c.retry(d, attempt)
	}
}

// safeInvoke treats a handler panic the same as an explicit Retry —
// an unhandled exception from the handler is treated as retry() per
// SPEC_FULL.md §4.2.
func (c *Consumer) safeInvoke(handler Handler, ctx context.Context, env *envelope.Envelope, raw []byte) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panicked, treating as retry",
				slog.String("queue", c.binding.Queue),
				slog.Any("panic", r),
			)
			decision = Retry
		}
	}()
	return handler(ctx, env, raw)
}

func (c *Consumer) retry(d amqp.Delivery, attempt int) {
	nextAttempt := attempt + 1
	if nextAttempt > c.maxRetries {
		c.toDLQ(d, attempt, "max retries exceeded")
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers["x-attempt"] = int64(nextAttempt)

	retryExchange := retryExchangeFor(c.binding.Exchange)
	err := c.ch.PublishWithContext(context.Background(), retryExchange, c.binding.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         d.Body,
	})
	if err != nil {
		c.logger.Error("failed to republish to retry exchange", slog.String("queue", c.binding.Queue), slog.Any("error", err))
		d.Nack(false, true)
		return
	}
	d.Ack(false)
	c.recordOutcome("retry")
	if c.metrics != nil {
		c.metrics.RetriedTotal.WithLabelValues(c.binding.Queue).Inc()
	}
}

func (c *Consumer) toDLQ(d amqp.Delivery, attempt int, reason string) {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers["x-attempt"] = int64(attempt + 1)

	dlq := c.binding.Queue + ".dlq"
	err := c.ch.PublishWithContext(context.Background(), "", dlq, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         d.Body,
	})
	if err != nil {
		c.logger.Error("failed to publish to dlq", slog.String("queue", c.binding.Queue), slog.Any("error", err))
		d.Nack(false, true)
		return
	}
	d.Ack(false)
	c.recordOutcome("dlq")
	if c.metrics != nil {
		c.metrics.DLQTotal.WithLabelValues(c.binding.Queue, reason).Inc()
	}
}

func (c *Consumer) recordOutcome(outcome string) {
	if c.metrics != nil {
		c.metrics.ConsumedTotal.WithLabelValues(c.binding.Queue, outcome).Inc()
	}
}

func attemptFromHeaders(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers["x-attempt"].(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
