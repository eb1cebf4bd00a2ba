package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/order-refunds/pkg/enums"
)

// EnvelopeVersion is stamped on events whose producer did not pick one.
const EnvelopeVersion = 1

// ActorRef is the staff member whose refund save produced the event.
type ActorRef struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON body stored in outbox_events.payload and
// published as the message data. Data holds the event specific payload.
type PayloadEnvelope struct {
	Version     int                   `json:"version"`
	EventID     string                `json:"event_id"`
	EventType   enums.OutboxEventType `json:"event_type"`
	AggregateID uuid.UUID             `json:"aggregate_id"`
	OccurredAt  time.Time             `json:"occurred_at"`
	Actor       *ActorRef             `json:"actor,omitempty"`
	Data        json.RawMessage       `json:"data"`
}

// DecodeEnvelope parses a stored payload and rejects envelopes that carry
// no version or no data.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Version <= 0 {
		return PayloadEnvelope{}, errors.New("envelope version missing")
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, errors.New("envelope data missing")
	}
	return envelope, nil
}
