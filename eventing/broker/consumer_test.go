package broker

import (
	"context"
	"io"
	"log/slog"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"

	"github.com/nexacart/order-events/eventing/envelope"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAttemptFromHeaders(t *testing.T) {
	assert.Equal(t, 0, attemptFromHeaders(nil))
	assert.Equal(t, 0, attemptFromHeaders(amqp.Table{}))
	assert.Equal(t, 2, attemptFromHeaders(amqp.Table{"x-attempt": int64(2)}))
	assert.Equal(t, 3, attemptFromHeaders(amqp.Table{"x-attempt": int32(3)}))
	assert.Equal(t, 1, attemptFromHeaders(amqp.Table{"x-attempt": 1}))
	assert.Equal(t, 0, attemptFromHeaders(amqp.Table{"x-attempt": "not a number"}))
}

func TestRetryExchangeFor(t *testing.T) {
	assert.Equal(t, ExchangeOrdersRetry, retryExchangeFor(ExchangeOrders))
	assert.Equal(t, ExchangeInventoryRetry, retryExchangeFor(ExchangeInventory))
	assert.Equal(t, ExchangeNotificationsRetry, retryExchangeFor(ExchangeNotifications))
}

func TestSafeInvoke_PanicIsTreatedAsRetry(t *testing.T) {
	c := &Consumer{logger: discardLogger(), binding: QueueBinding{Queue: "q"}}

	decision := c.safeInvoke(func(ctx context.Context, env *envelope.Envelope, raw []byte) Decision {
		panic("handler blew up")
	}, context.Background(), &envelope.Envelope{}, nil)

	assert.Equal(t, Retry, decision)
}

func TestSafeInvoke_PassesDecisionThrough(t *testing.T) {
	c := &Consumer{logger: discardLogger(), binding: QueueBinding{Queue: "q"}}

	for _, want := range []Decision{Ack, Retry, Dlq} {
		got := c.safeInvoke(func(ctx context.Context, env *envelope.Envelope, raw []byte) Decision {
			return want
		}, context.Background(), &envelope.Envelope{}, nil)
		assert.Equal(t, want, got)
	}
}

func TestConsumerOptions(t *testing.T) {
	c := NewConsumer(nil, QueueBinding{Queue: "q"}, envelope.NewRegistry(), discardLogger(), nil,
		WithMaxRetries(5), WithPrefetch(8))
	assert.Equal(t, 5, c.maxRetries)
	assert.Equal(t, 8, c.prefetch)

	defaults := NewConsumer(nil, QueueBinding{Queue: "q"}, envelope.NewRegistry(), discardLogger(), nil,
		WithMaxRetries(-1), WithPrefetch(0))
	assert.Equal(t, defaultMaxRetries, defaults.maxRetries)
	assert.Equal(t, defaultPrefetch, defaults.prefetch)
}
