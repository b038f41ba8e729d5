package main

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nexacart/order-events/resilience/breaker"
)

// ErrOrderNotFound is returned by Get when no aggregate has that
// orderId.
var ErrOrderNotFound = errors.New("order not found")

// OrderStore is the Order service's read-model persistence, separate
// from the append-only event store: it holds current aggregate state,
// mutated only by this service's own consumers. Writes go through the
// database circuit breaker; reads do not.
type OrderStore struct {
	collection *mongo.Collection
	cb         *breaker.CircuitBreaker
}

// NewOrderStore opens the "orders" collection in database "orders" and
// ensures the unique orderId index exists — grounded on the teacher's
// collection-per-aggregate Mongo idiom.
func NewOrderStore(ctx context.Context, client *mongo.Client, cb *breaker.CircuitBreaker) (*OrderStore, error) {
	collection := client.Database("orders").Collection("orders")

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "orderId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("ensure order store index: %w", err)
	}

	return &OrderStore{collection: collection, cb: cb}, nil
}

// Create inserts order. A duplicate orderId is not an error: the
// existing row is fetched and returned instead (idempotent create).
// The duplicate is resolved inside the breaker call so it never counts
// as a failure.
func (s *OrderStore) Create(ctx context.Context, order *Order) (*Order, error) {
	duplicate, err := s.cb.ExecuteContext(ctx, func(ctx context.Context) (interface{}, error) {
		_, err := s.collection.InsertOne(ctx, order)
		if mongo.IsDuplicateKeyError(err) {
			return true, nil
		}
		return false, err
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if duplicate.(bool) {
		return s.Get(ctx, order.OrderID)
	}
	return order, nil
}

// Get returns ErrOrderNotFound if no aggregate has orderID.
func (s *OrderStore) Get(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	err := s.collection.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &order, nil
}

// UpdateStatus applies transition's last-write-wins semantics and
// persists the result. Returns ErrOrderNotFound if orderID is unknown
// — callers (the inventory-event consumers) treat that as a
// non-fatal, logged condition per spec.md §4.4.1.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID string, next Status) error {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.transition(next, nowUTC()) {
		return nil
	}
	_, err = s.cb.ExecuteContext(ctx, func(ctx context.Context) (interface{}, error) {
		return s.collection.UpdateOne(ctx,
			bson.M{"orderId": orderID},
			bson.M{"$set": bson.M{"status": order.Status, "updatedAt": order.UpdatedAt}},
		)
	})
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

func (s *OrderStore) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, nil)
}
