package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/order-refunds/pkg/config"
	"github.com/angelmondragon/order-refunds/pkg/db/models"
	"github.com/angelmondragon/order-refunds/pkg/logger"
	"github.com/angelmondragon/order-refunds/pkg/outbox/registry"
)

const (
	fallbackBatch       = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	publishTimeout      = 15 * time.Second
	backoffCeiling      = 10 * time.Second
	maxJitter           = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type rowStore interface {
	ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	Retire(tx *gorm.DB, id uuid.UUID, cause error, maxAttempts int) error
}

type deadLetters interface {
	Park(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publishGuard interface {
	Claim(ctx context.Context, topic string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, topic string, eventID uuid.UUID) error
}

type relayDeps struct {
	Outbox     config.OutboxConfig
	Logger     *logger.Logger
	DB         txRunner
	Topics     topicSource
	Rows       rowStore
	DLQ        deadLetters
	Events     eventResolver
	Guard      publishGuard
	InstanceID string
}

// relay moves committed outbox rows to Pub/Sub. Several relays may run at
// once; row locks keep them off each other's batches.
type relay struct {
	relayDeps
	now         func() time.Time
	batch       int
	maxAttempts int
	poll        time.Duration
}

func newRelay(deps relayDeps) (*relay, error) {
	for _, dep := range []struct {
		name    string
		missing bool
	}{
		{"logger", deps.Logger == nil},
		{"database", deps.DB == nil},
		{"pubsub topics", deps.Topics == nil},
		{"outbox rows", deps.Rows == nil},
		{"dead letters", deps.DLQ == nil},
		{"event registry", deps.Events == nil},
	} {
		if dep.missing {
			return nil, fmt.Errorf("outbox relay: %s is required", dep.name)
		}
	}

	r := &relay{
		relayDeps:   deps,
		now:         time.Now,
		batch:       deps.Outbox.BatchSize,
		maxAttempts: deps.Outbox.MaxAttempts,
		poll:        time.Duration(deps.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.batch <= 0 {
		r.batch = fallbackBatch
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = fallbackMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = fallbackPoll
	}
	return r, nil
}

func (r *relay) ready(ctx context.Context) error {
	if err := r.DB.Ping(ctx); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	if err := r.Topics.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub not ready: %w", err)
	}
	return nil
}

// Run polls until ctx ends. A full batch is followed straight away by the
// next one; a failed batch backs off exponentially up to backoffCeiling.
func (r *relay) Run(ctx context.Context) error {
	if err := r.ready(ctx); err != nil {
		r.Logger.Error(ctx, "outbox relay not ready", err)
		return err
	}

	wait := r.poll
	for ctx.Err() == nil {
		n, err := r.drainOnce(ctx)
		switch {
		case err != nil:
			r.Logger.Error(ctx, "outbox batch failed", err)
			wait = min(max(wait, r.poll)*2, backoffCeiling)
		case n >= r.batch:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}
		if err := pause(ctx, wait+jitter()); err != nil {
			break
		}
	}
	r.Logger.Info(ctx, "outbox relay stopping")
	return ctx.Err()
}

// drainOnce handles one locked batch and reports how many rows it touched.
func (r *relay) drainOnce(ctx context.Context) (int, error) {
	var n int
	err := r.DB.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.Rows.ClaimBatch(tx, r.batch, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		for _, row := range rows {
			if _, err := r.handle(ctx, tx, row); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func jitter() time.Duration {
	return rand.N(maxJitter)
}

var errNoPublisher = errors.New("no publisher for topic")
