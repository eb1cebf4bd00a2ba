package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	"github.com/angelmondragon/order-refunds/pkg/outbox"
	"github.com/angelmondragon/order-refunds/pkg/outbox/registry"
)

type verdict int

const (
	sent verdict = iota
	alreadySent
	retryLater
	deadLettered
)

func (v verdict) String() string {
	return [...]string{"sent", "already_sent", "retry_later", "dead_lettered"}[v]
}

// handle publishes one row and records what happened on it. An error means
// the row's state could not be written and the batch must roll back.
func (r *relay) handle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (verdict, error) {
	resolved, err := r.Events.Resolve(row)
	if err != nil {
		return deadLettered, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err, "")
	}
	topic := resolved.Descriptor.Topic
	logCtx := r.Logger.WithFields(ctx, rowFields(row, resolved.Envelope, topic))

	eventID, err := uuid.Parse(resolved.Envelope.EventID)
	if err != nil {
		eventID = row.ID
	}

	if r.Guard != nil {
		seen, err := r.Guard.Claim(ctx, topic, eventID)
		if err != nil {
			return retryLater, r.retry(logCtx, tx, row, fmt.Errorf("publish guard: %w", err))
		}
		if seen {
			r.Logger.Warn(logCtx, "outbox event was already published")
			return alreadySent, r.markSent(tx, row)
		}
	}

	pubErr := r.send(ctx, row, resolved)
	if pubErr == nil {
		r.Logger.Info(logCtx, "outbox event published")
		return sent, r.markSent(tx, row)
	}

	if r.Guard != nil {
		if err := r.Guard.Release(ctx, topic, eventID); err != nil {
			r.Logger.Error(logCtx, "publish guard release failed", err)
		}
	}
	var permanent registry.NonRetryableError
	switch {
	case errors.As(pubErr, &permanent):
		return deadLettered, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, pubErr, topic)
	case row.AttemptCount+1 >= r.maxAttempts:
		return deadLettered, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, pubErr), topic)
	default:
		return retryLater, r.retry(logCtx, tx, row, pubErr)
	}
}

func (r *relay) markSent(tx *gorm.DB, row models.OutboxEvent) error {
	if err := r.Rows.MarkPublished(tx, row.ID, r.now()); err != nil {
		return fmt.Errorf("mark %s published: %w", row.ID, err)
	}
	return nil
}

func (r *relay) retry(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, cause error) error {
	r.Logger.Warn(r.Logger.WithFields(ctx, map[string]any{
		"attempt": row.AttemptCount + 1,
		"error":   cause.Error(),
	}), "outbox publish failed, will retry")
	if err := r.Rows.RecordFailure(tx, row.ID, cause); err != nil {
		return fmt.Errorf("record failure on %s: %w", row.ID, err)
	}
	return nil
}

func (r *relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, topic string) error {
	fields := rowFields(row, outbox.PayloadEnvelope{}, topic)
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	r.Logger.Warn(r.Logger.WithFields(ctx, fields), "outbox event dead-lettered")

	if err := r.DLQ.Park(tx, outbox.NewDLQEntry(row, reason, cause, r.now())); err != nil {
		return fmt.Errorf("dead-letter %s: %w", row.ID, err)
	}
	if err := r.Rows.Retire(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("retire %s: %w", row.ID, err)
	}
	return nil
}
