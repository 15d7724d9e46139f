package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LockHandle proves ownership of a held lock. The holder's token lives in
// caller-scoped state, not a process-wide map, so two concurrent workers
// never see each other's tokens; a LockHandle is that caller-scoped state,
// threaded explicitly through the call chain instead of thread-local
// storage.
type LockHandle struct {
	resource string
	token    string
	held     bool
}

// distributedLock is a fenced single-holder lock built on top of
// RemoteStore's SetIfAbsent/CompareAndDelete primitives.
type distributedLock struct {
	store RemoteStore
	log   *zap.Logger
}

func newDistributedLock(store RemoteStore, log *zap.Logger) *distributedLock {
	if log == nil {
		log = zap.NewNop()
	}
	return &distributedLock{store: store, log: log}
}

func lockKey(resource string) string {
	return "lock:" + resource
}

// TryLock atomically sets lock:<resource> to a fresh random token iff
// absent. The returned LockHandle must be passed to Unlock regardless of
// whether acquisition succeeded (Unlock on a zero-value handle is a no-op).
func (l *distributedLock) TryLock(ctx context.Context, resource string, ttl time.Duration) (LockHandle, bool) {
	token := uuid.NewString()
	ok, err := l.store.SetIfAbsent(ctx, lockKey(resource), []byte(token), ttl)
	if err != nil {
		// Transient store failure: fail open, treat as "not acquired".
		return LockHandle{}, false
	}
	if !ok {
		return LockHandle{}, false
	}
	return LockHandle{resource: resource, token: token, held: true}, true
}

// Unlock performs the compare-and-delete. It is idempotent: a handle that
// never acquired the lock, or whose TTL already expired and was claimed by
// someone else, simply no-ops.
func (l *distributedLock) Unlock(ctx context.Context, h LockHandle) {
	if !h.held {
		return
	}
	if _, err := l.store.CompareAndDelete(ctx, lockKey(h.resource), h.token); err != nil {
		l.log.Warn("cache: unlock compare-and-delete failed", zap.String("resource", h.resource), zap.Error(err))
	}
}

// WaitForLock loops TryLock with sleeps of retryInterval until success or
// wall-clock timeout, honoring cooperative cancellation of ctx.
func (l *distributedLock) WaitForLock(ctx context.Context, resource string, ttl, timeout, retryInterval time.Duration) (LockHandle, bool) {
	deadline := time.Now().Add(timeout)
	for {
		if h, ok := l.TryLock(ctx, resource, ttl); ok {
			return h, true
		}
		if !time.Now().Before(deadline) {
			return LockHandle{}, false
		}

		timer := time.NewTimer(retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return LockHandle{}, false
		case <-timer.C:
		}
	}
}
