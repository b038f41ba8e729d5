package main

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	amqpbroker "github.com/nexacart/order-events/eventing/broker"
	"github.com/nexacart/order-events/common/metrics"
	"github.com/nexacart/order-events/eventing/envelope"
)

// orderBindings declares the two queues this service consumes, per the
// broker topology table in SPEC_FULL.md §6.
var orderBindings = []amqpbroker.QueueBinding{
	{Queue: "order.created.q", Exchange: amqpbroker.ExchangeOrders, RoutingKey: "orders.created.v1"},
	{Queue: "orders.cancelled.q", Exchange: amqpbroker.ExchangeOrders, RoutingKey: "orders.cancelled.v1"},
}

func startConsumers(ctx context.Context, ch *amqp.Channel, svc *Service, registry *envelope.Registry, logger *slog.Logger, m *metrics.BrokerMetrics, opts ...amqpbroker.Option) error {
	for _, binding := range orderBindings {
		if err := amqpbroker.DeclareQueue(ch, binding); err != nil {
			return err
		}

		consumer := amqpbroker.NewConsumer(ch, binding, registry, logger, m, opts...)
		handler := orderHandler(svc)
		go func(c *amqpbroker.Consumer, h amqpbroker.Handler) {
			if err := c.Listen(ctx, h); err != nil {
				logger.Error("consumer stopped", slog.Any("error", err))
			}
		}(consumer, handler)
	}
	return nil
}

func orderHandler(svc *Service) amqpbroker.Handler {
	return func(ctx context.Context, env *envelope.Envelope, raw []byte) amqpbroker.Decision {
		var err error
		switch env.Type {
		case "orders.created":
			err = svc.HandleOrderCreated(ctx, env)
		case "orders.cancelled":
			err = svc.HandleOrderCancelled(ctx, env)
		default:
			return amqpbroker.Dlq
		}
		if err != nil {
			return amqpbroker.Retry
		}
		return amqpbroker.Ack
	}
}
