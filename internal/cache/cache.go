// Package cache is the cache-aside index over the task-list read path.
// It memoizes serialized list payloads per principal-derived key and is
// strictly an accelerator: every failure of the backing store degrades
// to a miss or a no-op, so response content never depends on cache
// health, only latency does.
package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"taskvault/internal/models"
	"taskvault/pkg/logger"
)

// ErrMiss is returned by a Store when the key is absent.
var ErrMiss = errors.New("cache: miss")

// Store is the backing key-value store. The production implementation
// is Redis; tests substitute a fake.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

const (
	probeInterval  = 5 * time.Second
	retryBackoff   = 100 * time.Millisecond
	retryBackoffUp = 2 * time.Second
)

// Index wraps a Store with bounded timeouts, swallowed failures and an
// availability state maintained by a background probe. While the store
// is unreachable every Get is a miss and Set/Invalidate are no-ops.
type Index struct {
	store     Store
	ttl       time.Duration
	opTimeout time.Duration
	healthy   atomic.Bool
}

// NewIndex builds an Index over store. A nil store yields a permanently
// degraded index (used when no cache address is configured). The store
// is pinged once synchronously so the initial state is known.
func NewIndex(ctx context.Context, store Store, ttl, opTimeout time.Duration) *Index {
	idx := &Index{store: store, ttl: ttl, opTimeout: opTimeout}
	if store != nil {
		idx.healthy.Store(idx.probe(ctx))
	}
	return idx
}

// Healthy reports whether the backing store was reachable at the last probe.
func (i *Index) Healthy() bool {
	return i.healthy.Load()
}

// Get returns the cached payload for key. Store errors and timeouts are
// reported as a miss, never as an error.
func (i *Index) Get(ctx context.Context, key string) ([]byte, bool) {
	if i.store == nil || !i.healthy.Load() {
		return nil, false
	}
	opCtx, cancel := context.WithTimeout(ctx, i.opTimeout)
	defer cancel()
	b, err := i.store.Get(opCtx, key)
	if err == nil {
		return b, true
	}
	if !errors.Is(err, ErrMiss) {
		logger.Debug(ctx, "Cache get failed", "key", key, "error", err)
		i.markDown(ctx)
	}
	return nil, false
}

// Set writes the payload for key with the configured TTL. Best-effort;
// failures are logged and swallowed.
func (i *Index) Set(ctx context.Context, key string, val []byte) {
	if i.store == nil || !i.healthy.Load() {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, i.opTimeout)
	defer cancel()
	if err := i.store.Set(opCtx, key, val, i.ttl); err != nil {
		logger.Debug(ctx, "Cache set failed", "key", key, "error", err)
		i.markDown(ctx)
	}
}

// Invalidate deletes the entry for key. Best-effort; failures are
// logged and swallowed, leaving at most a TTL-bounded staleness window.
func (i *Index) Invalidate(ctx context.Context, key string) {
	if i.store == nil || !i.healthy.Load() {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, i.opTimeout)
	defer cancel()
	if err := i.store.Del(opCtx, key); err != nil {
		logger.Debug(ctx, "Cache invalidate failed", "key", key, "error", err)
		i.markDown(ctx)
	}
}

// Run maintains the availability state: a periodic ping while healthy,
// exponential backoff (capped) while down. Blocks until ctx is done.
func (i *Index) Run(ctx context.Context) {
	if i.store == nil {
		return
	}
	backoff := retryBackoff
	for {
		var wait time.Duration
		if i.healthy.Load() {
			wait = probeInterval
			backoff = retryBackoff
		} else {
			wait = backoff
			backoff *= 2
			if backoff > retryBackoffUp {
				backoff = retryBackoffUp
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		up := i.probe(ctx)
		was := i.healthy.Swap(up)
		if up && !was {
			logger.Info(ctx, "Cache store reachable again")
		}
	}
}

func (i *Index) probe(ctx context.Context) bool {
	opCtx, cancel := context.WithTimeout(ctx, i.opTimeout)
	defer cancel()
	return i.store.Ping(opCtx) == nil
}

func (i *Index) markDown(ctx context.Context) {
	if i.healthy.Swap(false) {
		logger.Warn(ctx, "Cache store unreachable, entering degraded mode")
	}
}

// KeyFor derives the cache key for a principal's task list. All admins
// share one key because they see identical data; every other principal
// gets a key of their own.
func KeyFor(p models.Principal) string {
	if p.Role == models.RoleAdmin {
		return "tasks:admin"
	}
	return "tasks:user:" + p.ID
}
