package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quangtran/dinehub-backend/pkg/redis"
)

// Manager tracks processed settlement outcomes using Redis SETNX with a TTL.
// Keys follow the `dinehub:idempotency:settlement:<txn_ref>:<outcome>` pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds an idempotency guard that marks outcomes as processed for the given TTL.
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

// CheckAndMark returns true if the (txn_ref, outcome) pair was already claimed
// and otherwise claims it with the configured TTL.
func (m *Manager) CheckAndMark(ctx context.Context, txnRef, outcome string) (bool, error) {
	key, err := m.guardKey(txnRef, outcome)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Release drops the claim so a failed settlement can be retried.
func (m *Manager) Release(ctx context.Context, txnRef, outcome string) error {
	key, err := m.guardKey(txnRef, outcome)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) guardKey(txnRef, outcome string) (string, error) {
	if txnRef == "" {
		return "", errors.New("txn ref is required")
	}
	if outcome == "" {
		return "", errors.New("outcome is required")
	}
	scope := fmt.Sprintf("settlement:%s", txnRef)
	return m.store.IdempotencyKey(scope, outcome), nil
}
