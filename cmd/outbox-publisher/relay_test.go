package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/order-refunds/pkg/config"
	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	"github.com/angelmondragon/order-refunds/pkg/logger"
	"github.com/angelmondragon/order-refunds/pkg/outbox"
	"github.com/angelmondragon/order-refunds/pkg/outbox/payloads"
	"github.com/angelmondragon/order-refunds/pkg/outbox/registry"
)

func savedRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    uuid.NewString(),
		EventType:  enums.EventRefundSaved,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventRefundSaved,
		AggregateType: enums.AggregateRefund,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
}

type harness struct {
	relay *relay
	rows  *memRows
	dlq   *memDLQ
	pub   *scriptedPublisher
	guard *memGuard
}

func newHarness(t *testing.T, out config.OutboxConfig, rows []models.OutboxEvent, events eventResolver) *harness {
	t.Helper()
	h := &harness{
		rows:  &memRows{pending: rows},
		dlq:   &memDLQ{},
		pub:   &scriptedPublisher{},
		guard: &memGuard{held: map[uuid.UUID]bool{}},
	}
	if events == nil {
		events = passthroughEvents{}
	}
	r, err := newRelay(relayDeps{
		Outbox:     out,
		Logger:     logger.New(logger.Options{ServiceName: "relay-test", Output: io.Discard}),
		DB:         noTx{},
		Topics:     fixedTopics{pub: h.pub},
		Rows:       h.rows,
		DLQ:        h.dlq,
		Events:     events,
		Guard:      h.guard,
		InstanceID: "publisher-1",
	})
	require.NoError(t, err)
	h.relay = r
	return h
}

func TestDrainOnceKeepsGoingAfterAFailedPublish(t *testing.T) {
	first, second := savedRow(t, 0), savedRow(t, 0)
	h := newHarness(t, config.OutboxConfig{MaxAttempts: 5}, []models.OutboxEvent{first, second}, nil)
	h.pub.errs = []error{errors.New("unavailable"), nil}

	n, err := h.relay.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uuid.UUID{first.ID}, h.rows.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, h.rows.published)
	assert.Equal(t, []string{first.AggregateID.String()}, h.pub.resumed)

	require.Len(t, h.pub.sent, 2)
	msg := h.pub.sent[1]
	assert.Equal(t, second.AggregateID.String(), msg.OrderingKey)
	assert.Equal(t, "refund_saved", msg.Attributes["event_type"])
	assert.Equal(t, "publisher-1", msg.Attributes["publisher"])
	assert.Equal(t, "1", msg.Attributes["schema_version"])
	assert.Equal(t, "2026-10-01T09:00:00Z", msg.Attributes["queued_at"])
	assert.JSONEq(t, string(second.Payload), string(msg.Data))

	assert.False(t, h.guard.held[first.ID], "failed publish releases its claim")
}

func TestHandleSkipsEventsAlreadyPublished(t *testing.T) {
	row := savedRow(t, 0)
	h := newHarness(t, config.OutboxConfig{}, nil, nil)
	h.guard.held[row.ID] = true

	v, err := h.relay.handle(context.Background(), nil, row)
	require.NoError(t, err)
	assert.Equal(t, alreadySent, v)
	assert.Empty(t, h.pub.sent)
	assert.Equal(t, []uuid.UUID{row.ID}, h.rows.published)
}

func TestHandleDeadLettersUnresolvableRows(t *testing.T) {
	row := savedRow(t, 0)
	h := newHarness(t, config.OutboxConfig{MaxAttempts: 4}, nil,
		brokenEvents{err: registry.NewNonRetryableError(errors.New("unknown event"))})

	v, err := h.relay.handle(context.Background(), nil, row)
	require.NoError(t, err)
	assert.Equal(t, deadLettered, v)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, row.ID, h.dlq.entries[0].EventID)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, h.dlq.entries[0].ErrorReason)
	assert.JSONEq(t, string(row.Payload), string(h.dlq.entries[0].Payload))
	assert.Equal(t, map[uuid.UUID]int{row.ID: 4}, h.rows.retired)
}

func TestHandleDeadLettersOnLastAttempt(t *testing.T) {
	row := savedRow(t, 2)
	h := newHarness(t, config.OutboxConfig{MaxAttempts: 3}, nil, nil)
	h.pub.errs = []error{errors.New("deadline exceeded")}

	v, err := h.relay.handle(context.Background(), nil, row)
	require.NoError(t, err)
	assert.Equal(t, deadLettered, v)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, h.dlq.entries[0].ErrorReason)
	require.NotNil(t, h.dlq.entries[0].ErrorMessage)
	assert.Contains(t, *h.dlq.entries[0].ErrorMessage, "3 attempts")
}

func TestHandleRetriesWhenGuardIsDown(t *testing.T) {
	row := savedRow(t, 0)
	h := newHarness(t, config.OutboxConfig{}, nil, nil)
	h.guard.err = errors.New("redis down")

	v, err := h.relay.handle(context.Background(), nil, row)
	require.NoError(t, err)
	assert.Equal(t, retryLater, v)
	assert.Empty(t, h.pub.sent)
	assert.Equal(t, []uuid.UUID{row.ID}, h.rows.failed)
}

func TestDrainOnceSurfacesRowWriteFailures(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{}, []models.OutboxEvent{savedRow(t, 0)}, nil)
	h.rows.writeErr = errors.New("connection reset")

	_, err := h.relay.drainOnce(context.Background())
	assert.ErrorContains(t, err, "connection reset")
}

func TestNewRelayDefaultsAndRequirements(t *testing.T) {
	_, err := newRelay(relayDeps{})
	assert.ErrorContains(t, err, "logger is required")

	h := newHarness(t, config.OutboxConfig{}, nil, nil)
	assert.Equal(t, fallbackBatch, h.relay.batch)
	assert.Equal(t, fallbackMaxAttempts, h.relay.maxAttempts)
	assert.Equal(t, fallbackPoll, h.relay.poll)
}

func TestRunStopsWithContext(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{PollIntervalMS: 5}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.relay.Run(ctx), context.DeadlineExceeded)
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "dead_lettered", deadLettered.String())
	assert.Equal(t, "sent", sent.String())
}

type noTx struct{}

func (noTx) Ping(context.Context) error { return nil }

func (noTx) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type memRows struct {
	pending   []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	retired   map[uuid.UUID]int
	writeErr  error
}

func (m *memRows) ClaimBatch(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return m.pending, nil
}

func (m *memRows) MarkPublished(_ *gorm.DB, id uuid.UUID, _ time.Time) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.published = append(m.published, id)
	return nil
}

func (m *memRows) RecordFailure(_ *gorm.DB, id uuid.UUID, _ error) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.failed = append(m.failed, id)
	return nil
}

func (m *memRows) Retire(_ *gorm.DB, id uuid.UUID, _ error, attempts int) error {
	if m.retired == nil {
		m.retired = map[uuid.UUID]int{}
	}
	m.retired[id] = attempts
	return nil
}

type memDLQ struct {
	entries []models.OutboxDLQ
}

func (m *memDLQ) Park(_ *gorm.DB, entry models.OutboxDLQ) error {
	m.entries = append(m.entries, entry)
	return nil
}

// passthroughEvents resolves every row to the refunds topic, using the row
// id as the event id so guard claims are easy to inspect.
type passthroughEvents struct{}

func (passthroughEvents) Resolve(row models.OutboxEvent) (*registry.ResolvedEvent, error) {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     row.EventType,
			AggregateType: row.AggregateType,
			Topic:         "refunds",
		},
		Envelope: outbox.PayloadEnvelope{Version: outbox.EnvelopeVersion, EventID: row.ID.String()},
		Payload:  &payloads.RefundSavedEvent{},
	}, nil
}

type brokenEvents struct{ err error }

func (b brokenEvents) Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error) { return nil, b.err }

type memGuard struct {
	held map[uuid.UUID]bool
	err  error
}

func (g *memGuard) Claim(_ context.Context, _ string, id uuid.UUID) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.held[id] {
		return true, nil
	}
	g.held[id] = true
	return false, nil
}

func (g *memGuard) Release(_ context.Context, _ string, id uuid.UUID) error {
	delete(g.held, id)
	return nil
}

type fixedTopics struct{ pub *scriptedPublisher }

func (fixedTopics) Ping(context.Context) error { return nil }

func (f fixedTopics) Publisher(string) topicPublisher { return f.pub }

// scriptedPublisher fails publishes in the order given by errs; once errs
// runs out every publish succeeds.
type scriptedPublisher struct {
	errs    []error
	sent    []*gcppubsub.Message
	resumed []string
}

func (s *scriptedPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	s.sent = append(s.sent, msg)
	var err error
	if len(s.errs) > 0 {
		err, s.errs = s.errs[0], s.errs[1:]
	}
	return doneResult{err: err}
}

func (s *scriptedPublisher) ResumePublish(key string) {
	s.resumed = append(s.resumed, key)
}

type doneResult struct{ err error }

func (d doneResult) Get(context.Context) (string, error) { return "msg-1", d.err }
