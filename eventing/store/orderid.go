package store

import (
	"encoding/json"

	"github.com/nexacart/order-events/eventing/envelope"
)

// orderIDPayload captures the one field every payload schema carries,
// so backends can build the payload.orderId secondary index without a
// full schema-specific decode.
type orderIDPayload struct {
	OrderID string `json:"orderId"`
}

func extractOrderID(env *envelope.Envelope) string {
	var p orderIDPayload
	_ = json.Unmarshal(env.Payload, &p)
	return p.OrderID
}
