package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// FullProtectionCacheStrategy layers locked revalidation on top of SWR on
// both the background and foreground paths. Background revalidation
// always goes through TryLock (same as jitter-swr); foreground
// (expired/miss) revalidation goes through WaitForLock with the same
// parameters jitter-lock uses.
type FullProtectionCacheStrategy[T any] struct {
	b          base[T]
	tracker    *refreshTracker
	cooldown   *cooldownTracker
	dispatcher *backgroundDispatcher
	onFallback OnLockFallback
}

func NewFullProtectionCacheStrategy[T any](store RemoteStore, cfg Config, log *zap.Logger) (*FullProtectionCacheStrategy[T], error) {
	dispatcher, err := newBackgroundDispatcher(cfg.BackgroundWorkerPoolSize, log)
	if err != nil {
		return nil, err
	}
	return &FullProtectionCacheStrategy[T]{
		b:          newBase[T]("full-protection", store, newDistributedLock(store, log), cfg, log),
		tracker:    newRefreshTracker(cfg.LockTimeout * 10),
		cooldown:   newCooldownTracker(cfg.RefreshCooldown),
		dispatcher: dispatcher,
		onFallback: func(string, string) {},
	}, nil
}

func (s *FullProtectionCacheStrategy[T]) OnLockFallback(fn OnLockFallback) {
	if fn != nil {
		s.onFallback = fn
	}
}

func (s *FullProtectionCacheStrategy[T]) StrategyName() string { return "full-protection" }

func (s *FullProtectionCacheStrategy[T]) Close() { s.dispatcher.Release() }

func (s *FullProtectionCacheStrategy[T]) GetOrLoad(ctx context.Context, key string, loader Loader[T]) (Result[T], error) {
	now := time.Now()
	env, ok := s.b.readEnvelope(ctx, key)

	switch {
	case ok && env.Fresh(now):
		return Result[T]{Value: env.Value, Found: true, FromCache: true}, nil

	case ok && env.Stale(now):
		s.scheduleBackgroundRevalidate(key, loader)
		return Result[T]{Value: env.Value, Found: true, FromCache: true, Stale: true}, nil

	default:
		return s.foregroundRevalidate(ctx, key, loader)
	}
}

func (s *FullProtectionCacheStrategy[T]) scheduleBackgroundRevalidate(key string, loader Loader[T]) {
	if !s.cooldown.ready(key) {
		return
	}
	if !s.tracker.TryMark(key) {
		return
	}
	s.dispatcher.Dispatch(func() {
		defer s.tracker.Clear(key)
		s.runBackgroundRevalidate(key, loader)
	})
}

func (s *FullProtectionCacheStrategy[T]) runBackgroundRevalidate(key string, loader Loader[T]) {
	ctx := context.Background()
	resource := s.b.refreshResource(key)

	handle, acquired := s.b.lock.TryLock(ctx, resource, s.b.cfg.LockTimeout)
	if !acquired {
		return
	}
	defer s.b.lock.Unlock(ctx, handle)

	// Re-check after acquiring the lock: skip entirely if a peer already
	// refreshed it fresh.
	if env, ok := s.b.readEnvelope(ctx, key); ok && env.Fresh(time.Now()) {
		return
	}

	v, found, err := loader(ctx)
	if err != nil {
		s.b.log.Warn("cache: background revalidation loader failed", zap.String("strategy", "full-protection"), zap.String("key", key), zap.Error(err))
		return
	}
	if !found {
		return
	}

	now := time.Now()
	env := s.b.newEnvelope(v, now)
	if err := s.b.writeEnvelope(ctx, key, env, now); err != nil {
		s.b.log.Warn("cache: background revalidation write failed", zap.String("strategy", "full-protection"), zap.String("key", key), zap.Error(err))
		return
	}
	s.cooldown.mark(key)
}

// foregroundRevalidate covers the expired/absent path: WaitForLock with
// jitter-lock's parameters, a post-acquisition freshness re-check, and
// jitter-lock's fallback semantics on timeout.
func (s *FullProtectionCacheStrategy[T]) foregroundRevalidate(ctx context.Context, key string, loader Loader[T]) (Result[T], error) {
	resource := s.b.refreshResource(key)
	lockTTL := s.b.cfg.LockTimeout
	timeout := s.b.cfg.LockRetryInterval * time.Duration(s.b.cfg.LockMaxRetries)

	handle, acquired := s.b.lock.WaitForLock(ctx, resource, lockTTL, timeout, s.b.cfg.LockRetryInterval)
	if acquired {
		defer s.b.lock.Unlock(ctx, handle)

		if env, ok := s.b.readEnvelope(ctx, key); ok && env.Fresh(time.Now()) {
			return Result[T]{Value: env.Value, Found: true, FromCache: true}, nil
		}
		if env, ok := s.b.readEnvelope(ctx, key); ok && !env.Expired(time.Now()) {
			return Result[T]{Value: env.Value, Found: true, FromCache: true, Stale: true}, nil
		}

		v, found, err := loader(ctx)
		if err != nil {
			var zero T
			return Result[T]{Value: zero}, err
		}
		if !found {
			return Result[T]{Found: false}, nil
		}
		writeNow := time.Now()
		env := s.b.newEnvelope(v, writeNow)
		if err := s.b.writeEnvelope(ctx, key, env, writeNow); err != nil {
			s.b.log.Warn("cache: foreground revalidation write failed", zap.String("strategy", "full-protection"), zap.String("key", key), zap.Error(err))
		}
		s.cooldown.mark(key)
		return Result[T]{Value: v, Found: true}, nil
	}

	s.onFallback(s.StrategyName(), key)

	if env, ok := s.b.readEnvelope(ctx, key); ok && !env.Expired(time.Now()) {
		return Result[T]{Value: env.Value, Found: true, FromCache: true, Stale: env.Stale(time.Now())}, nil
	}

	if s.b.cfg.DisableLockTimeoutFallback {
		var zero T
		return Result[T]{Value: zero}, ErrLockUnavailable
	}

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

func (s *FullProtectionCacheStrategy[T]) Invalidate(ctx context.Context, key string) error {
	s.tracker.Clear(key)
	return s.b.deleteKey(ctx, key)
}
