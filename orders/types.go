package main

import "time"

// Status is one of the order aggregate's terminal or non-terminal
// states. Transitions are last-write-wins; replays never roll back.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// Item is one line of an order.
type Item struct {
	ProductID string  `json:"productId" bson:"productId"`
	Quantity  int     `json:"quantity" bson:"quantity"`
	UnitPrice float64 `json:"unitPrice" bson:"unitPrice"`
}

// Order is the read-model aggregate. orderId is unique; re-inserting
// the same orderId returns the existing record.
type Order struct {
	OrderID    string    `json:"orderId" bson:"orderId"`
	CustomerID string    `json:"customerId" bson:"customerId"`
	Items      []Item    `json:"items" bson:"items"`
	Total      float64   `json:"total" bson:"total"`
	Status     Status    `json:"status" bson:"status"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}

// transition applies an inventory-driven status change. REJECTED and
// CANCELLED are terminal: later inventory events are recorded by the
// caller's event store append but must not mutate the aggregate.
func (o *Order) transition(next Status, now time.Time) bool {
	if o.Status == StatusRejected || o.Status == StatusCancelled {
		return false
	}
	o.Status = next
	o.UpdatedAt = now
	return true
}

// CreateOrderItem is the wire shape of one line in the HTTP create
// request body.
type CreateOrderItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// CreateOrderRequest is the HTTP create request body.
type CreateOrderRequest struct {
	CustomerID string              `json:"customerId"`
	Items      []CreateOrderItem   `json:"items"`
}

// CancelOrderRequest is the HTTP cancel request body.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}
