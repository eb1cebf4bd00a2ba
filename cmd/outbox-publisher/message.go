package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/outbox"
	"github.com/angelmondragon/order-refunds/pkg/outbox/registry"
)

// topicSource hands out publishers by topic; pkg/pubsub.Client caches them.
type topicSource interface {
	Ping(context.Context) error
	Publisher(topic string) topicPublisher
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// send publishes the stored envelope as is. Messages of one refund share an
// ordering key so subscribers see its saves in commit order.
func (r *relay) send(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.Topics.Publisher(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("%w %s", errNoPublisher, topic))
	}

	msg := buildMessage(row, resolved.Envelope, r.InstanceID)
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	res := pub.Publish(ctx, msg)
	if res == nil {
		return registry.NewNonRetryableError(fmt.Errorf("%w %s", errNoPublisher, topic))
	}
	if _, err := res.Get(ctx); err != nil {
		// ordered publishing pauses the key after a failure
		pub.ResumePublish(msg.OrderingKey)
		return err
	}
	return nil
}

func buildMessage(row models.OutboxEvent, env outbox.PayloadEnvelope, instanceID string) *gcppubsub.Message {
	key := row.AggregateID.String()
	attrs := map[string]string{
		"event_id":       env.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   key,
		"schema_version": strconv.Itoa(env.Version),
		"queued_at":      row.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if instanceID != "" {
		attrs["publisher"] = instanceID
	}
	return &gcppubsub.Message{Data: row.Payload, OrderingKey: key, Attributes: attrs}
}

func rowFields(row models.OutboxEvent, env outbox.PayloadEnvelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"refund_uid":    row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	}
	if env.EventID != "" {
		fields["event_id"] = env.EventID
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}

// pubsubTopics adapts the GCP publisher to topicPublisher.
type pubsubTopics struct {
	client interface {
		Ping(context.Context) error
		Publisher(name string) *gcppubsub.Publisher
	}
}

func (p pubsubTopics) Ping(ctx context.Context) error { return p.client.Ping(ctx) }

func (p pubsubTopics) Publisher(topic string) topicPublisher {
	pub := p.client.Publisher(topic)
	if pub == nil {
		return nil
	}
	return gcpPublisher{pub}
}

type gcpPublisher struct{ *gcppubsub.Publisher }

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.Publisher.Publish(ctx, msg)
}
