package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	setNXResult bool
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	return f.setNXResult, f.setNXError
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "dinehub:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if len(keys) > 0 {
		f.lastDeleted = keys[0]
	}
	return nil
}

func TestCheckAndMark_FirstClaim(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager, err := NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	already, err := manager.CheckAndMark(context.Background(), "ORDER_abc", "success")
	if err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if already {
		t.Fatalf("expected first call to return false, got true")
	}

	expectedKey := "dinehub:idempotency:settlement:ORDER_abc:success"
	if store.lastKey != expectedKey {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}
}

func TestCheckAndMark_AlreadyClaimed(t *testing.T) {
	store := &fakeStore{setNXResult: false}
	manager, err := NewManager(store, 12*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	already, err := manager.CheckAndMark(context.Background(), "ORDER_abc", "failure")
	if err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if !already {
		t.Fatalf("expected replay to return true, got false")
	}
}

func TestCheckAndMark_StoreError(t *testing.T) {
	store := &fakeStore{setNXError: errors.New("redis down")}
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := manager.CheckAndMark(context.Background(), "ORDER_abc", "success"); err == nil {
		t.Fatalf("expected store error to propagate")
	}
}

func TestCheckAndMark_RequiresInputs(t *testing.T) {
	manager, err := NewManager(&fakeStore{}, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := manager.CheckAndMark(context.Background(), "", "success"); err == nil {
		t.Fatalf("expected error for empty txn ref")
	}
	if _, err := manager.CheckAndMark(context.Background(), "ORDER_abc", ""); err == nil {
		t.Fatalf("expected error for empty outcome")
	}
}

func TestRelease(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := manager.Release(context.Background(), "ORDER_abc", "success"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	expectedKey := "dinehub:idempotency:settlement:ORDER_abc:success"
	if store.lastDeleted != expectedKey {
		t.Fatalf("unexpected deleted key: %q", store.lastDeleted)
	}
}
