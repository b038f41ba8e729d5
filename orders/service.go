package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nexacart/order-events/common/metrics"
	"github.com/nexacart/order-events/eventing/broker"
	"github.com/nexacart/order-events/eventing/envelope"
	"github.com/nexacart/order-events/eventing/store"
	"github.com/nexacart/order-events/idempotency"
)

// ErrValidation reports a rejected HTTP request body; the caller maps
// it to a 400 response.
type ErrValidation struct {
	Reason string
}

func (e *ErrValidation) Error() string { return e.Reason }

// ErrEnvelopeInvalid means a constructed envelope failed schema
// validation before publish; the caller maps it to a 500 response and
// must not have appended or published anything.
type ErrEnvelopeInvalid struct {
	Inner *envelope.SchemaError
}

func (e *ErrEnvelopeInvalid) Error() string { return e.Inner.Error() }

// Service implements the Order service's create/cancel/consume logic
// described in SPEC_FULL.md §4.4.1.
//
// The idempotency store is in-process by default; multi-replica
// deployments must configure the shared Redis backend so repeated
// Idempotency-Keys resolve across instances.
type Service struct {
	orders     *OrderStore
	events     store.EventStore
	publisher  *broker.Publisher
	registry   *envelope.Registry
	idempotent idempotency.Store
	business   *metrics.BusinessMetrics
	logger     *slog.Logger
}

// NewService wires the Order service's persistence and messaging
// dependencies.
func NewService(orders *OrderStore, events store.EventStore, publisher *broker.Publisher, registry *envelope.Registry, idempotent idempotency.Store, business *metrics.BusinessMetrics, logger *slog.Logger) *Service {
	return &Service{orders: orders, events: events, publisher: publisher, registry: registry, idempotent: idempotent, business: business, logger: logger}
}

func nowUTC() time.Time { return time.Now().UTC() }

func newOrderID() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return "ord_" + hex.EncodeToString(buf)
}

func validateCreateRequest(req CreateOrderRequest) error {
	if req.CustomerID == "" {
		return &ErrValidation{Reason: "customerId must not be empty"}
	}
	if len(req.Items) == 0 {
		return &ErrValidation{Reason: "items must contain at least one entry"}
	}
	for i, item := range req.Items {
		if item.ProductID == "" {
			return &ErrValidation{Reason: fmt.Sprintf("items[%d].productId must not be empty", i)}
		}
		if item.Quantity <= 0 {
			return &ErrValidation{Reason: fmt.Sprintf("items[%d].quantity must be positive", i)}
		}
		if item.UnitPrice <= 0 {
			return &ErrValidation{Reason: fmt.Sprintf("items[%d].unitPrice must be positive", i)}
		}
	}
	return nil
}

// CreateResult is what CreateOrder returns: the resulting order, and
// whether it was served from the idempotency map rather than freshly
// created.
type CreateResult struct {
	Order      *Order
	Idempotent bool
}

// CreateOrder implements the full create flow: validation, idempotency
// replay, aggregate persistence, envelope construction/validation,
// append, publish, and idempotency recording.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest, idempotencyKey, correlationID string) (*CreateResult, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		if rec, ok, err := s.idempotent.Get(ctx, idempotencyKey); err != nil {
			return nil, fmt.Errorf("check idempotency key: %w", err)
		} else if ok {
			order, err := s.orders.Get(ctx, rec.OrderID)
			if err != nil {
				return nil, fmt.Errorf("load idempotent order: %w", err)
			}
			return &CreateResult{Order: order, Idempotent: true}, nil
		}
	}

	items := make([]Item, len(req.Items))
	var total float64
	for i, it := range req.Items {
		items[i] = Item{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
		total += float64(it.Quantity) * it.UnitPrice
	}

	now := nowUTC()
	order := &Order{
		OrderID:    newOrderID(),
		CustomerID: req.CustomerID,
		Items:      items,
		Total:      total,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	order, err := s.orders.Create(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	payload := map[string]any{
		"orderId":    order.OrderID,
		"customerId": order.CustomerID,
		"items":      toPayloadItems(order.Items),
		"total":      order.Total,
	}
	env, err := envelope.New("orders", "orders.created", 1, correlationID, payload, time.Now)
	if err != nil {
		return nil, fmt.Errorf("construct envelope: %w", err)
	}
	if schemaErr := s.registry.ValidateOutgoing(env); schemaErr != nil {
		return nil, &ErrEnvelopeInvalid{Inner: schemaErr}
	}

	if err := s.appendAndPublish(ctx, env, broker.ExchangeOrders, "orders.created.v1", order.OrderID); err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		rec := idempotency.Record{OrderID: order.OrderID, Status: string(order.Status)}
		if err := s.idempotent.Put(ctx, idempotencyKey, rec, idempotency.DefaultTTL); err != nil {
			s.logger.Error("failed to record idempotency key", slog.Any("error", err))
		}
	}

	s.business.Inc("orders_created_total")
	return &CreateResult{Order: order}, nil
}

// CancelOrder eagerly transitions the aggregate to CANCELLED then
// constructs, validates, appends, and publishes orders.cancelled.
func (s *Service) CancelOrder(ctx context.Context, orderID, reason, correlationID string) error {
	if reason == "" {
		reason = "customer requested cancellation"
	}
	if err := s.orders.UpdateStatus(ctx, orderID, StatusCancelled); err != nil {
		return fmt.Errorf("transition order to cancelled: %w", err)
	}

	payload := map[string]any{"orderId": orderID, "reason": reason}
	env, err := envelope.New("orders", "orders.cancelled", 1, correlationID, payload, time.Now)
	if err != nil {
		return fmt.Errorf("construct envelope: %w", err)
	}
	if schemaErr := s.registry.ValidateOutgoing(env); schemaErr != nil {
		return &ErrEnvelopeInvalid{Inner: schemaErr}
	}

	if err := s.appendAndPublish(ctx, env, broker.ExchangeOrders, "orders.cancelled.v1", orderID); err != nil {
		return err
	}
	s.business.Inc("orders_cancelled_total")
	return nil
}

func (s *Service) appendAndPublish(ctx context.Context, env *envelope.Envelope, exchange, routingKey, orderID string) error {
	if err := s.events.Append(ctx, env); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	body, err := marshalEnvelope(env)
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, exchange, routingKey, body, env.CorrelationID, orderID, nil); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// HandleInventoryApproved processes a delivery already validated by
// the consumer runtime: append, then transition the aggregate.
// Unknown orderId is logged and not fatal — the event is still
// recorded.
func (s *Service) HandleInventoryApproved(ctx context.Context, env *envelope.Envelope) error {
	return s.handleInventoryOutcome(ctx, env, StatusConfirmed)
}

// HandleInventoryRejected is HandleInventoryApproved's REJECTED twin.
func (s *Service) HandleInventoryRejected(ctx context.Context, env *envelope.Envelope) error {
	return s.handleInventoryOutcome(ctx, env, StatusRejected)
}

func (s *Service) handleInventoryOutcome(ctx context.Context, env *envelope.Envelope, next Status) error {
	if err := s.events.Append(ctx, env); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	orderID := payloadOrderID(env)
	err := s.orders.UpdateStatus(ctx, orderID, next)
	if errors.Is(err, ErrOrderNotFound) {
		s.logger.Warn("inventory event for unknown order", slog.String("order_id", orderID), slog.String("type", env.Type))
		return nil
	}
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}
