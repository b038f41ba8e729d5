package broker

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange names. Six topic exchanges total: one primary and one retry
// exchange per domain.
const (
	ExchangeOrders             = "orders"
	ExchangeOrdersRetry        = "orders.retry"
	ExchangeInventory          = "inventory"
	ExchangeInventoryRetry     = "inventory.retry"
	ExchangeNotifications      = "notifications"
	ExchangeNotificationsRetry = "notifications.retry"
)

// retryExchangeFor returns the retry exchange paired with a primary
// exchange, so callers never have to hardcode the ".retry" suffix twice.
func retryExchangeFor(primary string) string {
	return primary + ".retry"
}

// retryTTL is the delay a message sits in Q.retry before the broker
// dead-letters it back into Q.
const retryTTL = 10 * time.Second

// QueueBinding declares one logical queue Q and the primary
// exchange/routing key it is bound to. DeclareQueue creates the full
// Q / Q.retry / Q.dlq triad described in SPEC_FULL.md §4.2.
type QueueBinding struct {
	Queue      string
	Exchange   string
	RoutingKey string
}

// DeclareExchanges declares all six topic exchanges. Safe to call once
// per connection; RabbitMQ treats re-declaration with identical
// properties as a no-op.
func DeclareExchanges(ch *amqp.Channel) error {
	for _, ex := range []string{
		ExchangeOrders, ExchangeOrdersRetry,
		ExchangeInventory, ExchangeInventoryRetry,
		ExchangeNotifications, ExchangeNotificationsRetry,
	} {
		if err := ch.ExchangeDeclare(ex, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}
	return nil
}

// DeclareQueue creates Q, binds it to b.Exchange on b.RoutingKey, then
// creates Q.retry (TTL + dead-letter back to the primary exchange with
// the same routing key) and Q.dlq (terminal).
func DeclareQueue(ch *amqp.Channel, b QueueBinding) error {
	if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", b.Queue, err)
	}
	if err := ch.QueueBind(b.Queue, b.RoutingKey, b.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s/%s: %w", b.Queue, b.Exchange, b.RoutingKey, err)
	}

	retryExchange := retryExchangeFor(b.Exchange)
	retryQueue := b.Queue + ".retry"
	retryArgs := amqp.Table{
		"x-message-ttl":             int64(retryTTL / time.Millisecond),
		"x-dead-letter-exchange":    b.Exchange,
		"x-dead-letter-routing-key": b.RoutingKey,
	}
	if _, err := ch.QueueDeclare(retryQueue, true, false, false, false, retryArgs); err != nil {
		return fmt.Errorf("declare retry queue %s: %w", retryQueue, err)
	}
	if err := ch.QueueBind(retryQueue, b.RoutingKey, retryExchange, false, nil); err != nil {
		return fmt.Errorf("bind retry queue %s to %s/%s: %w", retryQueue, retryExchange, b.RoutingKey, err)
	}

	dlq := b.Queue + ".dlq"
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlq %s: %w", dlq, err)
	}

	return nil
}
