package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexacart/order-events/common/metrics"
	"github.com/nexacart/order-events/eventing/broker"
	"github.com/nexacart/order-events/eventing/envelope"
	"github.com/nexacart/order-events/eventing/store"
)

// Service implements the Notification service's fan-in logic, per
// SPEC_FULL.md §4.4.3: every consumed event becomes exactly one
// notification.sent event with a mapped kind and channel "log".
type Service struct {
	events    store.EventStore
	publisher *broker.Publisher
	registry  *envelope.Registry
	business  *metrics.BusinessMetrics
}

func NewService(events store.EventStore, publisher *broker.Publisher, registry *envelope.Registry, business *metrics.BusinessMetrics) *Service {
	return &Service{events: events, publisher: publisher, registry: registry, business: business}
}

// kindFor maps an incoming event type to the notification kind the
// schema accepts.
func kindFor(eventType string) (string, bool) {
	switch eventType {
	case "orders.created":
		return "order_created", true
	case "inventory.reserve.approved":
		return "order_confirmed", true
	case "inventory.reserve.rejected":
		return "order_rejected", true
	case "orders.cancelled":
		return "order_cancelled", true
	default:
		return "", false
	}
}

type orderIDPayload struct {
	OrderID string `json:"orderId"`
}

// Handle appends the incoming event, then constructs, validates,
// appends, and publishes the mapped notification.sent event.
func (s *Service) Handle(ctx context.Context, env *envelope.Envelope) error {
	if err := s.events.Append(ctx, env); err != nil {
		return fmt.Errorf("append incoming event: %w", err)
	}

	kind, ok := kindFor(env.Type)
	if !ok {
		return fmt.Errorf("no notification kind mapped for event type %q", env.Type)
	}

	var incoming orderIDPayload
	if err := json.Unmarshal(env.Payload, &incoming); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}

	payload := map[string]any{
		"orderId": incoming.OrderID,
		"kind":    kind,
		"channel": "log",
	}
	out, err := envelope.New("notification", "notification.sent", 1, env.CorrelationID, payload, time.Now)
	if err != nil {
		return fmt.Errorf("construct notification.sent envelope: %w", err)
	}
	if schemaErr := s.registry.ValidateOutgoing(out); schemaErr != nil {
		return fmt.Errorf("validate notification.sent envelope: %w", schemaErr)
	}
	if err := s.events.Append(ctx, out); err != nil {
		return fmt.Errorf("append notification.sent event: %w", err)
	}

	body, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal notification.sent envelope: %w", err)
	}
	if err := s.publisher.Publish(ctx, broker.ExchangeNotifications, "notification.sent.v1", body, env.CorrelationID, incoming.OrderID, nil); err != nil {
		return fmt.Errorf("publish notification.sent event: %w", err)
	}
	s.business.Inc("notifications_sent_total")
	return nil
}
