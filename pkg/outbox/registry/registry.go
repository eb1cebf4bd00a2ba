// Package registry routes outbox rows to Pub/Sub topics and decodes their
// payloads into the typed refund events.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/order-refunds/pkg/config"
	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	"github.com/angelmondragon/order-refunds/pkg/outbox"
	"github.com/angelmondragon/order-refunds/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	newPayload    func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that can never be published as stored.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable outbox error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func refundEvent[T any](eventType enums.OutboxEventType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: enums.AggregateRefund,
		Topic:         topic,
		newPayload:    func() any { return new(T) },
	}
}

// NewEventRegistry maps every refund event to its topic. Restock events go
// to RestockTopic when one is configured.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	refunds := strings.TrimSpace(cfg.RefundsTopic)
	if refunds == "" {
		return nil, errors.New("refunds topic is required")
	}
	restock := strings.TrimSpace(cfg.RestockTopic)
	if restock == "" {
		restock = refunds
	}

	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	for _, desc := range []EventDescriptor{
		refundEvent[payloads.RefundSavedEvent](enums.EventRefundSaved, refunds),
		refundEvent[payloads.RefundItemRestockedEvent](enums.EventRefundItemRestocked, restock),
		refundEvent[payloads.RefundTransactionCreatedEvent](enums.EventRefundTransactionCreated, refunds),
	} {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Topics lists the distinct topics events can be routed to.
func (r *EventRegistry) Topics() []string {
	var topics []string
	for _, desc := range r.entries {
		if !slices.Contains(topics, desc.Topic) {
			topics = append(topics, desc.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve checks the row against its descriptor and the envelope it stores,
// then decodes the typed payload. Every failure is non-retryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	}
	if desc.AggregateType != event.AggregateType {
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return nil, nonRetryable("%s: missing aggregate_id", event.EventType)
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, nonRetryable("%s: %w", event.EventType, err)
	}
	if envelope.EventType != "" && envelope.EventType != event.EventType {
		return nil, nonRetryable("envelope event type %s does not match row %s", envelope.EventType, event.EventType)
	}
	if envelope.AggregateID != uuid.Nil && envelope.AggregateID != event.AggregateID {
		return nil, nonRetryable("envelope aggregate %s does not match row %s", envelope.AggregateID, event.AggregateID)
	}

	payload := desc.newPayload()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
