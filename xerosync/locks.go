package xerosync

import (
	"context"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

// LockManager hands out named mutual-exclusion locks. TryAcquire never
// blocks: correctness here favours skipping a duplicate-derivation
// attempt over stalling a batch.
type LockManager interface {
	TryAcquire(ctx context.Context, name string) (release func(), ok bool)
}

// RedisLockManager backs named locks with redislock so overlapping sync
// processes on different instances exclude each other.
type RedisLockManager struct {
	client *redislock.Client
	ttl    time.Duration
}

func NewRedisLockManager(client *redislock.Client) *RedisLockManager {
	return &RedisLockManager{client: client, ttl: 30 * time.Second}
}

func (m *RedisLockManager) TryAcquire(ctx context.Context, name string) (func(), bool) {
	if m.client == nil {
		return nil, false
	}
	lock, err := m.client.Obtain(ctx, name, m.ttl, nil)
	if err != nil {
		// redislock.ErrNotObtained means another process holds the lock;
		// an unreachable backend is treated the same way.
		return nil, false
	}
	return func() { _ = lock.Release(context.Background()) }, true
}

// MemoryLockManager is the single-process fallback: a lock table keyed
// by name.
type MemoryLockManager struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryLockManager() *MemoryLockManager {
	return &MemoryLockManager{held: map[string]bool{}}
}

func (m *MemoryLockManager) TryAcquire(_ context.Context, name string) (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[name] {
		return nil, false
	}
	m.held[name] = true
	return func() {
		m.mu.Lock()
		delete(m.held, name)
		m.mu.Unlock()
	}, true
}
