// Package envelope defines the canonical event envelope and the per-type
// payload schemas, and validates in both directions: validateOutgoing
// before a producer publishes, validateIncoming before a consumer handler
// sees a delivery.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the fixed-shape wrapper carried by every message on every
// exchange. All fields are required.
type Envelope struct {
	EventID       string          `json:"eventId"`
	Type          string          `json:"type"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlationId"`
	Payload       json.RawMessage `json:"payload"`
}

// SchemaError reports a structural or payload validation failure. Schema
// failures are never retried: on the consume side they route straight to
// a DLQ, on the produce side the caller must not publish.
type SchemaError struct {
	Type    string
	Version int
	Field   string
	Reason  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation failed for %s.v%d: %s: %s", e.Type, e.Version, e.Field, e.Reason)
}

// Validator checks a single payload type+version and the envelope's
// structural fields that accompany it.
type Validator func(env *Envelope) *SchemaError

// Registry maps (type, version) to the Validator that accepts it.
type Registry struct {
	validators map[key]Validator
}

type key struct {
	Type    string
	Version int
}

// NewRegistry builds the registry containing every payload schema this
// module knows how to validate. Schema evolution adds a new (type,
// version+1) entry here; old entries are never removed while consumers
// still declare they accept them.
func NewRegistry() *Registry {
	r := &Registry{validators: map[key]Validator{}}
	r.register("orders.created", 1, validateOrdersCreatedV1)
	r.register("orders.cancelled", 1, validateOrdersCancelledV1)
	r.register("inventory.reserve.approved", 1, validateInventoryApprovedV1)
	r.register("inventory.reserve.rejected", 1, validateInventoryRejectedV1)
	r.register("notification.sent", 1, validateNotificationSentV1)
	return r
}

func (r *Registry) register(typ string, version int, v Validator) {
	r.validators[key{typ, version}] = v
}

// Has reports whether a schema is registered for (type, version) —
// backs testable property 1, "schema totality".
func (r *Registry) Has(typ string, version int) bool {
	_, ok := r.validators[key{typ, version}]
	return ok
}

func (r *Registry) lookup(typ string, version int) (Validator, *SchemaError) {
	v, ok := r.validators[key{typ, version}]
	if !ok {
		return nil, &SchemaError{Type: typ, Version: version, Field: "type/version", Reason: "no schema registered"}
	}
	return v, nil
}

func validateStructure(env *Envelope) *SchemaError {
	if env.EventID == "" {
		return &SchemaError{Type: env.Type, Version: env.Version, Field: "eventId", Reason: "must not be empty"}
	}
	if env.Type == "" {
		return &SchemaError{Field: "type", Reason: "must not be empty"}
	}
	if env.Version <= 0 {
		return &SchemaError{Type: env.Type, Field: "version", Reason: "must be a positive integer"}
	}
	if env.OccurredAt.IsZero() {
		return &SchemaError{Type: env.Type, Version: env.Version, Field: "occurredAt", Reason: "must be set"}
	}
	if env.Producer == "" {
		return &SchemaError{Type: env.Type, Version: env.Version, Field: "producer", Reason: "must not be empty"}
	}
	if env.CorrelationID == "" {
		return &SchemaError{Type: env.Type, Version: env.Version, Field: "correlationId", Reason: "must not be empty"}
	}
	return nil
}

// Parse decodes raw bytes into an Envelope without validating it. A
// parse failure is a transport-level condition, distinct from schema
// invalidity: the consumer runtime retries it instead of quarantining,
// bounded by the retry budget.
func Parse(raw []byte) (*Envelope, *SchemaError) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &SchemaError{Field: "envelope", Reason: "not valid JSON: " + err.Error()}
	}
	return &env, nil
}

// ValidateIncoming parses raw bytes into an Envelope and validates both
// the envelope structure and its payload against the registered schema
// for (type, version).
func (r *Registry) ValidateIncoming(raw []byte) (*Envelope, *SchemaError) {
	env, parseErr := Parse(raw)
	if parseErr != nil {
		return nil, parseErr
	}
	if err := r.ValidateOutgoing(env); err != nil {
		return nil, err
	}
	return env, nil
}

// ValidateOutgoing validates an envelope a producer is about to publish.
// On failure the caller must not publish and must not append to the
// event store.
func (r *Registry) ValidateOutgoing(env *Envelope) *SchemaError {
	if err := validateStructure(env); err != nil {
		return err
	}
	validate, err := r.lookup(env.Type, env.Version)
	if err != nil {
		return err
	}
	return validate(env)
}

func nonEmptyString(payload map[string]any, field string) (string, *SchemaError) {
	v, ok := payload[field]
	if !ok {
		return "", &SchemaError{Field: field, Reason: "missing"}
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", &SchemaError{Field: field, Reason: "must be a non-empty string"}
	}
	return s, nil
}

func positiveNumber(payload map[string]any, field string) (float64, *SchemaError) {
	v, ok := payload[field]
	if !ok {
		return 0, &SchemaError{Field: field, Reason: "missing"}
	}
	n, ok := v.(float64)
	if !ok || n <= 0 {
		return 0, &SchemaError{Field: field, Reason: "must be a positive number"}
	}
	return n, nil
}

func decodePayload(env *Envelope) (map[string]any, *SchemaError) {
	var payload map[string]any
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, &SchemaError{Type: env.Type, Version: env.Version, Field: "payload", Reason: "not a JSON object: " + err.Error()}
	}
	return payload, nil
}

func withContext(env *Envelope, err *SchemaError) *SchemaError {
	if err == nil {
		return nil
	}
	err.Type = env.Type
	err.Version = env.Version
	return err
}

func validateOrdersCreatedV1(env *Envelope) *SchemaError {
	payload, err := decodePayload(env)
	if err != nil {
		return err
	}
	if _, err := nonEmptyString(payload, "orderId"); err != nil {
		return withContext(env, err)
	}
	if _, err := nonEmptyString(payload, "customerId"); err != nil {
		return withContext(env, err)
	}
	items, ok := payload["items"].([]any)
	if !ok || len(items) == 0 {
		return withContext(env, &SchemaError{Field: "items", Reason: "must contain at least one item"})
	}
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			return withContext(env, &SchemaError{Field: fmt.Sprintf("items[%d]", i), Reason: "must be an object"})
		}
		if _, err := nonEmptyString(item, "productId"); err != nil {
			return withContext(env, &SchemaError{Field: fmt.Sprintf("items[%d].productId", i), Reason: err.Reason})
		}
		qty, ok := item["quantity"].(float64)
		if !ok || qty <= 0 || qty != float64(int64(qty)) {
			return withContext(env, &SchemaError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be a positive integer"})
		}
		if _, err := positiveNumber(item, "unitPrice"); err != nil {
			return withContext(env, &SchemaError{Field: fmt.Sprintf("items[%d].unitPrice", i), Reason: err.Reason})
		}
	}
	if _, err := positiveNumber(payload, "total"); err != nil {
		return withContext(env, err)
	}
	return nil
}

func validateOrdersCancelledV1(env *Envelope) *SchemaError {
	payload, err := decodePayload(env)
	if err != nil {
		return err
	}
	if _, err := nonEmptyString(payload, "orderId"); err != nil {
		return withContext(env, err)
	}
	if _, err := nonEmptyString(payload, "reason"); err != nil {
		return withContext(env, err)
	}
	return nil
}

func validateInventoryApprovedV1(env *Envelope) *SchemaError {
	payload, err := decodePayload(env)
	if err != nil {
		return err
	}
	if _, err := nonEmptyString(payload, "orderId"); err != nil {
		return withContext(env, err)
	}
	if _, err := nonEmptyString(payload, "reservationId"); err != nil {
		return withContext(env, err)
	}
	return nil
}

func validateInventoryRejectedV1(env *Envelope) *SchemaError {
	payload, err := decodePayload(env)
	if err != nil {
		return err
	}
	if _, err := nonEmptyString(payload, "orderId"); err != nil {
		return withContext(env, err)
	}
	if _, err := nonEmptyString(payload, "reason"); err != nil {
		return withContext(env, err)
	}
	return nil
}

var validNotificationKinds = map[string]bool{
	"order_created":   true,
	"order_confirmed": true,
	"order_rejected":  true,
	"order_cancelled": true,
}

func validateNotificationSentV1(env *Envelope) *SchemaError {
	payload, err := decodePayload(env)
	if err != nil {
		return err
	}
	if _, err := nonEmptyString(payload, "orderId"); err != nil {
		return withContext(env, err)
	}
	kind, err := nonEmptyString(payload, "kind")
	if err != nil {
		return withContext(env, err)
	}
	if !validNotificationKinds[kind] {
		return withContext(env, &SchemaError{Field: "kind", Reason: "must be one of order_created, order_confirmed, order_rejected, order_cancelled"})
	}
	if _, err := nonEmptyString(payload, "channel"); err != nil {
		return withContext(env, err)
	}
	return nil
}
