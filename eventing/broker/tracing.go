package broker

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
)

// headerCarrier adapts amqp.Table to propagation.TextMapCarrier so the W3C
// trace context can ride in AMQP message headers, the same way
// x-correlation-id and x-group-id do.
type headerCarrier struct {
	headers amqp.Table
}

func (c *headerCarrier) Get(key string) string {
	if v, ok := c.headers[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	c.headers[key] = value
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for k := range c.headers {
		keys = append(keys, k)
	}
	return keys
}

// injectTraceContext writes the current span context into AMQP headers
// before publish.
func injectTraceContext(ctx context.Context, headers amqp.Table) {
	otel.GetTextMapPropagator().Inject(ctx, &headerCarrier{headers: headers})
}

// extractTraceContext recovers the span context a producer attached to a
// delivery's headers, so the consumer's span continues the same trace.
func extractTraceContext(ctx context.Context, headers amqp.Table) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, &headerCarrier{headers: headers})
}
