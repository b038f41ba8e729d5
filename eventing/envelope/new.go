package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New constructs an envelope with a fresh eventId and occurredAt pinned to
// the moment of construction. Replay must never call New — it republishes
// the stored envelope bytes unchanged so occurredAt is never rewritten.
func New(producer, typ string, version int, correlationID string, payload any, now func() time.Time) (*Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for %s: %w", typ, err)
	}
	return &Envelope{
		EventID:       uuid.NewString(),
		Type:          typ,
		Version:       version,
		OccurredAt:    now(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       body,
	}, nil
}
