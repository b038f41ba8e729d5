package main

import (
	"encoding/json"
	"fmt"

	"github.com/nexacart/order-events/eventing/envelope"
)

func toPayloadItems(items []Item) []map[string]any {
	out := make([]map[string]any, len(items))
	for i, it := range items {
		out[i] = map[string]any{
			"productId": it.ProductID,
			"quantity":  it.Quantity,
			"unitPrice": it.UnitPrice,
		}
	}
	return out
}

func marshalEnvelope(env *envelope.Envelope) ([]byte, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return body, nil
}

type orderIDPayload struct {
	OrderID string `json:"orderId"`
}

func payloadOrderID(env *envelope.Envelope) string {
	var p orderIDPayload
	_ = json.Unmarshal(env.Payload, &p)
	return p.OrderID
}
