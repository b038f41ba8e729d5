package main

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	amqpbroker "github.com/nexacart/order-events/eventing/broker"
	"github.com/nexacart/order-events/common/metrics"
	"github.com/nexacart/order-events/eventing/envelope"
)

// notificationBindings declares the four fan-in queues this service
// consumes, per the broker topology table in SPEC_FULL.md §6.
var notificationBindings = []amqpbroker.QueueBinding{
	{Queue: "orders.created.notification.q", Exchange: amqpbroker.ExchangeOrders, RoutingKey: "orders.created.v1"},
	{Queue: "orders.cancelled.notification.q", Exchange: amqpbroker.ExchangeOrders, RoutingKey: "orders.cancelled.v1"},
	{Queue: "inventory.reserve.approved.notification.q", Exchange: amqpbroker.ExchangeInventory, RoutingKey: "inventory.reserve.approved.v1"},
	{Queue: "inventory.reserve.rejected.notification.q", Exchange: amqpbroker.ExchangeInventory, RoutingKey: "inventory.reserve.rejected.v1"},
}

func startConsumers(ctx context.Context, ch *amqp.Channel, svc *Service, registry *envelope.Registry, logger *slog.Logger, m *metrics.BrokerMetrics, opts ...amqpbroker.Option) error {
	for _, binding := range notificationBindings {
		if err := amqpbroker.DeclareQueue(ch, binding); err != nil {
			return err
		}

		consumer := amqpbroker.NewConsumer(ch, binding, registry, logger, m, opts...)
		go func(c *amqpbroker.Consumer) {
			if err := c.Listen(ctx, notificationHandler(svc)); err != nil {
				logger.Error("consumer stopped", slog.Any("error", err))
			}
		}(consumer)
	}
	return nil
}

func notificationHandler(svc *Service) amqpbroker.Handler {
	return func(ctx context.Context, env *envelope.Envelope, raw []byte) amqpbroker.Decision {
		if err := svc.Handle(ctx, env); err != nil {
			return amqpbroker.Retry
		}
		return amqpbroker.Ack
	}
}
