package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// OnLockFallback, when set, is notified every time the jitter-swr or
// full-protection foreground path exhausts its lock wait/retry budget. It
// fires before the fallback itself, whichever form that takes: a cache
// re-read that returns a cached value (full-protection), ErrLockUnavailable
// when DisableLockTimeoutFallback is set, or a direct loader call. It makes
// an otherwise invisible tradeoff observable: if loaders are routinely
// slower than LockTimeout, this fires often and tuning is needed.
type OnLockFallback func(strategyName, key string)

// JitterSwrCacheStrategy is stale-while-revalidate with single-flight
// background revalidation.
type JitterSwrCacheStrategy[T any] struct {
	b          base[T]
	tracker    *refreshTracker
	cooldown   *cooldownTracker
	dispatcher *backgroundDispatcher
	onFallback OnLockFallback
}

// NewJitterSwrCacheStrategy constructs the "jitter-swr" strategy. It owns a
// bounded worker pool for background revalidation; call Close to release it
// during shutdown.
func NewJitterSwrCacheStrategy[T any](store RemoteStore, cfg Config, log *zap.Logger) (*JitterSwrCacheStrategy[T], error) {
	dispatcher, err := newBackgroundDispatcher(cfg.BackgroundWorkerPoolSize, log)
	if err != nil {
		return nil, err
	}
	return &JitterSwrCacheStrategy[T]{
		b:          newBase[T]("jitter-swr", store, newDistributedLock(store, log), cfg, log),
		tracker:    newRefreshTracker(cfg.LockTimeout * 10),
		cooldown:   newCooldownTracker(cfg.RefreshCooldown),
		dispatcher: dispatcher,
		onFallback: func(string, string) {},
	}, nil
}

// OnLockFallback installs the lock-timeout observability hook.
func (s *JitterSwrCacheStrategy[T]) OnLockFallback(fn OnLockFallback) {
	if fn != nil {
		s.onFallback = fn
	}
}

func (s *JitterSwrCacheStrategy[T]) StrategyName() string { return "jitter-swr" }

// Close releases the background worker pool.
func (s *JitterSwrCacheStrategy[T]) Close() { s.dispatcher.Release() }

func (s *JitterSwrCacheStrategy[T]) GetOrLoad(ctx context.Context, key string, loader Loader[T]) (Result[T], error) {
	now := time.Now()
	env, ok := s.b.readEnvelope(ctx, key)

	switch {
	case ok && env.Fresh(now):
		return Result[T]{Value: env.Value, Found: true, FromCache: true}, nil

	case ok && env.Stale(now):
		s.scheduleBackgroundRevalidate(key, loader)
		return Result[T]{Value: env.Value, Found: true, FromCache: true, Stale: true}, nil

	default:
		// Expired or absent: synchronous single-flight.
		return s.synchronousRevalidate(ctx, key, loader, now)
	}
}

// scheduleBackgroundRevalidate handles the stale branch: at most one
// background task per key is scheduled, gated by the atomic test-and-add on
// the refresh-in-flight set plus the supplemental cooldown throttle.
func (s *JitterSwrCacheStrategy[T]) scheduleBackgroundRevalidate(key string, loader Loader[T]) {
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

func (s *JitterSwrCacheStrategy[T]) runBackgroundRevalidate(key string, loader Loader[T]) {
	ctx := context.Background()
	resource := s.b.refreshResource(key)

	handle, acquired := s.b.lock.TryLock(ctx, resource, s.b.cfg.LockTimeout)
	if !acquired {
		// Some other node already owns the refresh; nothing to do here.
		return
	}
	defer s.b.lock.Unlock(ctx, handle)

	v, found, err := loader(ctx)
	if err != nil {
		s.b.log.Warn("cache: background revalidation loader failed", zap.String("strategy", "jitter-swr"), zap.String("key", key), zap.Error(err))
		return
	}
	if !found {
		return
	}

	now := time.Now()
	env := s.b.newEnvelope(v, now)
	if err := s.b.writeEnvelope(ctx, key, env, now); err != nil {
		s.b.log.Warn("cache: background revalidation write failed", zap.String("strategy", "jitter-swr"), zap.String("key", key), zap.Error(err))
		return
	}
	s.cooldown.mark(key)
}

// synchronousRevalidate handles the expired/absent branch: a try-once lock
// attempt, then sleeping on the cache (not the lock) for up to
// LockMaxRetries iterations, then a last-resort direct loader call.
func (s *JitterSwrCacheStrategy[T]) synchronousRevalidate(ctx context.Context, key string, loader Loader[T], now time.Time) (Result[T], error) {
	resource := s.b.refreshResource(key)

	if handle, acquired := s.b.lock.TryLock(ctx, resource, s.b.cfg.LockTimeout); acquired {
		defer s.b.lock.Unlock(ctx, handle)

		// A peer may have repopulated the cache between our first read and
		// winning the lock.
		if env, ok := s.b.readEnvelope(ctx, key); ok && !env.Expired(time.Now()) {
			return Result[T]{Value: env.Value, Found: true, FromCache: true, Stale: env.Stale(time.Now())}, nil
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
			s.b.log.Warn("cache: synchronous revalidation write failed", zap.String("strategy", "jitter-swr"), zap.String("key", key), zap.Error(err))
		}
		s.cooldown.mark(key)
		return Result[T]{Value: v, Found: true}, nil
	}

	// Didn't win the lock: sleep on the cache, betting the holder will
	// repopulate it before its lock TTL expires.
	for i := 0; i < s.b.cfg.LockMaxRetries; i++ {
		timer := time.NewTimer(s.b.cfg.LockRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return Result[T]{Value: zero}, ctx.Err()
		case <-timer.C:
		}
		if env, ok := s.b.readEnvelope(ctx, key); ok && !env.Expired(time.Now()) {
			return Result[T]{Value: env.Value, Found: true, FromCache: true, Stale: env.Stale(time.Now())}, nil
		}
	}

	s.onFallback(s.StrategyName(), key)
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

func (s *JitterSwrCacheStrategy[T]) Invalidate(ctx context.Context, key string) error {
	s.tracker.Clear(key)
	return s.b.deleteKey(ctx, key)
}
