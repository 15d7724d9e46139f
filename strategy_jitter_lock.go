package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// JitterLockCacheStrategy is hard-TTL single-flight via the distributed
// lock. Under the lock's correctness assumptions, at most one loader call
// happens per key per LockTimeout window, unless the fallback path fires.
type JitterLockCacheStrategy[T any] struct {
	b base[T]
}

func NewJitterLockCacheStrategy[T any](store RemoteStore, cfg Config, log *zap.Logger) *JitterLockCacheStrategy[T] {
	return &JitterLockCacheStrategy[T]{b: newBase[T]("jitter-lock", store, newDistributedLock(store, log), cfg, log)}
}

func (s *JitterLockCacheStrategy[T]) StrategyName() string { return "jitter-lock" }

func (s *JitterLockCacheStrategy[T]) GetOrLoad(ctx context.Context, key string, loader Loader[T]) (Result[T], error) {
	if v, ok := s.b.readBare(ctx, key); ok {
		return Result[T]{Value: v, Found: true, FromCache: true}, nil
	}

	resource := s.b.refreshResource(key)
	lockTTL := s.b.cfg.LockTimeout
	timeout := s.b.cfg.LockRetryInterval * time.Duration(s.b.cfg.LockMaxRetries)

	handle, acquired := s.b.lock.WaitForLock(ctx, resource, lockTTL, timeout, s.b.cfg.LockRetryInterval)
	if acquired {
		defer s.b.lock.Unlock(ctx, handle)

		// Double-check: a peer may have populated the cache while we waited.
		if v, ok := s.b.readBare(ctx, key); ok {
			return Result[T]{Value: v, Found: true, FromCache: true}, nil
		}

		v, found, err := loader(ctx)
		if err != nil {
			var zero T
			return Result[T]{Value: zero}, err
		}
		if !found {
			return Result[T]{Found: false}, nil
		}
		if err := s.b.writeBare(ctx, key, v, s.b.jitteredTTL()); err != nil {
			s.b.log.Warn("cache: write-after-lock failed", zap.String("strategy", "jitter-lock"), zap.String("key", key), zap.Error(err))
		}
		return Result[T]{Value: v, Found: true}, nil
	}

	// Lock timed out. Re-read the cache: the holder may have just finished.
	if v, ok := s.b.readBare(ctx, key); ok {
		return Result[T]{Value: v, Found: true, FromCache: true}, nil
	}

	if s.b.cfg.DisableLockTimeoutFallback {
		var zero T
		return Result[T]{Value: zero}, ErrLockUnavailable
	}

	// Fail-open fallback: accept degraded stampede protection rather than
	// failing the request outright.
	v, found, err := loader(ctx)
	if err != nil {
		var zero T
		return Result[T]{Value: zero}, err
	}
	if !found {
		return Result[T]{Found: false}, nil
	}
	return Result[T]{Value: v, Found: true}, nil
}

func (s *JitterLockCacheStrategy[T]) Invalidate(ctx context.Context, key string) error {
	return s.b.deleteKey(ctx, key)
}
