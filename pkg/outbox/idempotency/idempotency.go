package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/order-refunds/pkg/redis"
)

// Manager claims outbox event IDs per topic using Redis SETNX with a TTL, so
// a row whose published mark was lost is not delivered twice.
// Keys follow the `idempotency:evt:published:<topic>:<event_id>` pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds a guard that holds claims for the given TTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// Claim reports whether the event was already claimed for the topic and
// otherwise claims it.
func (m *Manager) Claim(ctx context.Context, topic string, eventID uuid.UUID) (bool, error) {
	key, err := m.publishedKey(topic, eventID)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Release drops a claim after a failed publish so the next attempt can retry.
func (m *Manager) Release(ctx context.Context, topic string, eventID uuid.UUID) error {
	key, err := m.publishedKey(topic, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) publishedKey(topic string, eventID uuid.UUID) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", errors.New("topic is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	scope := fmt.Sprintf("evt:published:%s", topic)
	return m.store.IdempotencyKey(scope, eventID.String()), nil
}
