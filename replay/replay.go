package main

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nexacart/order-events/eventing/broker"
	"github.com/nexacart/order-events/eventing/envelope"
)

type orderIDPayload struct {
	OrderID string `json:"orderId"`
}

func payloadOrderID(env *envelope.Envelope) string {
	var p orderIDPayload
	_ = json.Unmarshal(env.Payload, &p)
	return p.OrderID
}

// replayAll republishes every matched envelope unchanged, routed by the
// static type→(exchange, routingKey) table. Unknown types are skipped
// with a warning rather than treated as fatal, since a partial replay
// run is still useful.
func replayAll(ctx context.Context, publisher *broker.Publisher, events []*envelope.Envelope, log *slog.Logger) (republished, skipped int) {
	for _, env := range events {
		route, ok := routingTable[env.Type]
		if !ok {
			log.Warn("skipping event with unknown type", slog.String("event_id", env.EventID), slog.String("type", env.Type))
			skipped++
			continue
		}

		body, err := json.Marshal(env)
		if err != nil {
			log.Error("failed to marshal event for replay", slog.String("event_id", env.EventID), slog.Any("error", err))
			skipped++
			continue
		}

		headers := amqp.Table{"x-replay": true}
		orderID := payloadOrderID(env)
		if err := publisher.Publish(ctx, route.Exchange, route.RoutingKey, body, env.CorrelationID, orderID, headers); err != nil {
			log.Error("failed to republish event", slog.String("event_id", env.EventID), slog.Any("error", err))
			skipped++
			continue
		}
		republished++
	}
	return republished, skipped
}
