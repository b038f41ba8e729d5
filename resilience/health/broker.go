package health

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// BrokerChecker returns a Checker that proves the broker connection is
// alive by inspecting a known queue — cheaper than a full publish and
// sufficient to detect a dead channel, per spec.md §4.5's readiness
// contract ("a named known queue can be inspected on the broker").
func BrokerChecker(ch *amqp.Channel, queue string) Checker {
	return func(ctx context.Context) error {
		_, err := ch.QueueInspect(queue)
		return err
	}
}
