package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	claimed     map[string]bool
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func newFakeStore() *fakeStore {
	return &fakeStore{claimed: map[string]bool{}}
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) Set(_ context.Context, key string, _ any, _ time.Duration) error {
	f.claimed[key] = true
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	if f.setNXError != nil {
		return false, f.setNXError
	}
	if f.claimed[key] {
		return false, nil
	}
	f.claimed[key] = true
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		f.lastDeleted = key
		delete(f.claimed, key)
	}
	return nil
}

func TestClaimOncePerTopic(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()
	eventID := uuid.New()

	already, err := manager.Claim(ctx, "pf-refund-events", eventID)
	if err != nil || already {
		t.Fatalf("first claim: already=%v err=%v", already, err)
	}
	expectedKey := "idempotency:evt:published:pf-refund-events:" + eventID.String()
	if store.lastKey != expectedKey {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}

	already, err = manager.Claim(ctx, "pf-refund-events", eventID)
	if err != nil || !already {
		t.Fatalf("second claim: already=%v err=%v", already, err)
	}

	already, err = manager.Claim(ctx, "other-topic", eventID)
	if err != nil || already {
		t.Fatalf("claims are scoped per topic: already=%v err=%v", already, err)
	}
}

func TestReleaseAllowsReclaim(t *testing.T) {
	store := newFakeStore()
	manager, _ := NewManager(store, time.Hour)
	ctx := context.Background()
	eventID := uuid.New()

	if _, err := manager.Claim(ctx, "t", eventID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := manager.Release(ctx, "t", eventID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if store.lastDeleted != "idempotency:evt:published:t:"+eventID.String() {
		t.Fatalf("unexpected deleted key %q", store.lastDeleted)
	}
	already, err := manager.Claim(ctx, "t", eventID)
	if err != nil || already {
		t.Fatalf("expected reclaim after release: already=%v err=%v", already, err)
	}
}

func TestClaimErrors(t *testing.T) {
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected store to be required")
	}
	if _, err := NewManager(newFakeStore(), -time.Second); err == nil {
		t.Fatal("expected negative ttl to be rejected")
	}

	store := newFakeStore()
	store.setNXError = errors.New("boom")
	manager, _ := NewManager(store, time.Hour)
	if _, err := manager.Claim(context.Background(), "t", uuid.New()); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := manager.Claim(context.Background(), "", uuid.New()); err == nil {
		t.Fatal("expected topic to be required")
	}
	if err := manager.Release(context.Background(), "t", uuid.Nil); err == nil {
		t.Fatal("expected event id to be required")
	}
}
