package main

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	amqpbroker "github.com/nexacart/order-events/eventing/broker"
	"github.com/nexacart/order-events/common/metrics"
	"github.com/nexacart/order-events/eventing/envelope"
)

// inventoryBindings declares the two queues this service consumes,
// per the broker topology table in SPEC_FULL.md §6.
var inventoryBindings = []amqpbroker.QueueBinding{
	{Queue: "inventory.reserve.approved.q", Exchange: amqpbroker.ExchangeInventory, RoutingKey: "inventory.reserve.approved.v1"},
	{Queue: "inventory.reserve.rejected.q", Exchange: amqpbroker.ExchangeInventory, RoutingKey: "inventory.reserve.rejected.v1"},
}

// startConsumers declares the queue triads and launches a consumer
// goroutine per queue; it returns once all Listen calls have been
// started, not once they exit.
func startConsumers(ctx context.Context, ch *amqp.Channel, svc *Service, registry *envelope.Registry, logger *slog.Logger, m *metrics.BrokerMetrics, opts ...amqpbroker.Option) error {
	for _, binding := range inventoryBindings {
		if err := amqpbroker.DeclareQueue(ch, binding); err != nil {
			return err
		}

		consumer := amqpbroker.NewConsumer(ch, binding, registry, logger, m, opts...)
		handler := inventoryHandler(svc)
		go func(c *amqpbroker.Consumer, h amqpbroker.Handler) {
			if err := c.Listen(ctx, h); err != nil {
				logger.Error("consumer stopped", slog.Any("error", err))
			}
		}(consumer, handler)
	}
	return nil
}

func inventoryHandler(svc *Service) amqpbroker.Handler {
	return func(ctx context.Context, env *envelope.Envelope, raw []byte) amqpbroker.Decision {
		var err error
		switch env.Type {
		case "inventory.reserve.approved":
			err = svc.HandleInventoryApproved(ctx, env)
		case "inventory.reserve.rejected":
			err = svc.HandleInventoryRejected(ctx, env)
		default:
			return amqpbroker.Dlq
		}
		if err != nil {
			return amqpbroker.Retry
		}
		return amqpbroker.Ack
	}
}
