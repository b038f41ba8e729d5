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

// maxReservableQuantity is the stand-in stock rule's upper bound: an
// order reserves stock iff 0 < Σquantities ≤ maxReservableQuantity.
const maxReservableQuantity = 10

const reasonInsufficientStock = "insufficient_stock"

// Service implements the Inventory service's reservation rule, per
// SPEC_FULL.md §4.4.2.
type Service struct {
	events    store.EventStore
	publisher *broker.Publisher
	registry  *envelope.Registry
	business  *metrics.BusinessMetrics
}

func NewService(events store.EventStore, publisher *broker.Publisher, registry *envelope.Registry, business *metrics.BusinessMetrics) *Service {
	return &Service{events: events, publisher: publisher, registry: registry, business: business}
}

type orderItem struct {
	Quantity float64 `json:"quantity"`
}

type orderItemsPayload struct {
	OrderID string      `json:"orderId"`
	Items   []orderItem `json:"items"`
}

// HandleOrderCreated appends the incoming event, applies the
// reservation rule, and publishes the approved/rejected outcome.
func (s *Service) HandleOrderCreated(ctx context.Context, env *envelope.Envelope) error {
	if err := s.events.Append(ctx, env); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	var payload orderItemsPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode orders.created payload: %w", err)
	}

	if decideReservation(payload.Items) {
		if err := s.publishApproved(ctx, env.CorrelationID, payload.OrderID); err != nil {
			return err
		}
		s.business.Inc("inventory_approved_total")
		return nil
	}
	if err := s.publishRejected(ctx, env.CorrelationID, payload.OrderID, reasonInsufficientStock); err != nil {
		return err
	}
	s.business.Inc("inventory_rejected_total")
	return nil
}

// decideReservation applies the stand-in stock rule: approve iff the
// sum of requested quantities is strictly between 0 and
// maxReservableQuantity inclusive.
func decideReservation(items []orderItem) bool {
	var total float64
	for _, item := range items {
		total += item.Quantity
	}
	return total > 0 && total <= maxReservableQuantity
}

func (s *Service) publishApproved(ctx context.Context, correlationID, orderID string) error {
	payload := map[string]any{"orderId": orderID, "reservationId": newReservationID()}
	return s.constructAndPublish(ctx, correlationID, "inventory.reserve.approved", 1,
		broker.ExchangeInventory, "inventory.reserve.approved.v1", orderID, payload)
}

func (s *Service) publishRejected(ctx context.Context, correlationID, orderID, reason string) error {
	payload := map[string]any{"orderId": orderID, "reason": reason}
	return s.constructAndPublish(ctx, correlationID, "inventory.reserve.rejected", 1,
		broker.ExchangeInventory, "inventory.reserve.rejected.v1", orderID, payload)
}

func (s *Service) constructAndPublish(ctx context.Context, correlationID, typ string, version int, exchange, routingKey, orderID string, payload any) error {
	env, err := envelope.New("inventory", typ, version, correlationID, payload, time.Now)
	if err != nil {
		return fmt.Errorf("construct %s envelope: %w", typ, err)
	}
	if schemaErr := s.registry.ValidateOutgoing(env); schemaErr != nil {
		return fmt.Errorf("validate %s envelope: %w", typ, schemaErr)
	}
	if err := s.events.Append(ctx, env); err != nil {
		return fmt.Errorf("append %s event: %w", typ, err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", typ, err)
	}
	if err := s.publisher.Publish(ctx, exchange, routingKey, body, correlationID, orderID, nil); err != nil {
		return fmt.Errorf("publish %s event: %w", typ, err)
	}
	return nil
}

// HandleOrderCancelled records the cancellation event. Restock is a
// no-op in this core — there is nothing to release.
func (s *Service) HandleOrderCancelled(ctx context.Context, env *envelope.Envelope) error {
	if err := s.events.Append(ctx, env); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}
