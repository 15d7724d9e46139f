package cache

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Loader is the caller-supplied origin function. found=false with a
// nil error is a legitimate "not found" result, not an error; err takes
// priority and is always propagated to the caller unmodified.
type Loader[T any] func(ctx context.Context) (value T, found bool, err error)

// Result carries the returned value plus supplemental instrumentation:
// FromCache distinguishes a cache hit from a fresh loader call, and Stale
// flags an SWR/full-protection hit that was served from the stale window
// while a revalidation was scheduled or attempted.
type Result[T any] struct {
	Value     T
	Found     bool
	FromCache bool
	Stale     bool
}

// Strategy is the shared contract every strategy exposes.
type Strategy[T any] interface {
	GetOrLoad(ctx context.Context, key string, loader Loader[T]) (Result[T], error)
	Invalidate(ctx context.Context, key string) error
	StrategyName() string
}

// base holds everything every strategy needs: key derivation, the remote
// store, the lock primitive, config, and a logger. Concrete strategies
// embed it and add only their own control flow, centralizing plumbing so
// each strategy's own logic stays thin.
type base[T any] struct {
	name  string
	store RemoteStore
	lock  *distributedLock
	cfg   Config
	log   *zap.Logger
}

func newBase[T any](name string, store RemoteStore, lock *distributedLock, cfg Config, log *zap.Logger) base[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return base[T]{name: name, store: store, lock: lock, cfg: cfg, log: log}
}

// cacheKey applies the mandatory namespacing: product:<strategyName>:<key>.
func (b base[T]) cacheKey(key string) string {
	return "product:" + b.name + ":" + key
}

// refreshResource is the lock resource name:
// refresh:<strategyName>:<key>. The "refresh:" prefix (not "lock:", which
// the lock primitive itself adds) lets every strategy share one lock
// namespace without colliding on resource names.
func (b base[T]) refreshResource(key string) string {
	return "refresh:" + b.name + ":" + key
}

func (b base[T]) readBare(ctx context.Context, key string) (T, bool) {
	var zero T
	data, err := b.store.Get(ctx, b.cacheKey(key))
	if err != nil {
		return zero, false
	}
	v, err := decodeBare[T](data)
	if err != nil {
		b.log.Warn("cache: decode miss on bare read", zap.String("strategy", b.name), zap.String("key", key), zap.Error(err))
		return zero, false
	}
	return v, true
}

func (b base[T]) writeBare(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := encodeBare(value)
	if err != nil {
		return err
	}
	return b.store.Set(ctx, b.cacheKey(key), data, ttl)
}

func (b base[T]) readEnvelope(ctx context.Context, key string) (CachedValue[T], bool) {
	data, err := b.store.Get(ctx, b.cacheKey(key))
	if err != nil {
		return CachedValue[T]{}, false
	}
	env, err := decodeEnvelope[T](data)
	if err != nil {
		b.log.Warn("cache: decode miss on envelope read", zap.String("strategy", b.name), zap.String("key", key), zap.Error(err))
		return CachedValue[T]{}, false
	}
	return env, true
}

func (b base[T]) writeEnvelope(ctx context.Context, key string, env CachedValue[T], now time.Time) error {
	data, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	return b.store.Set(ctx, b.cacheKey(key), data, env.totalTTL(now))
}

func (b base[T]) deleteKey(ctx context.Context, key string) error {
	return b.store.Delete(ctx, b.cacheKey(key))
}

// jitteredTTL computes BaseTTL + U{0, JitterMax}.
func (b base[T]) jitteredTTL() time.Duration {
	if b.cfg.JitterMax <= 0 {
		return b.cfg.BaseTTL
	}
	return b.cfg.BaseTTL + time.Duration(rand.Int63n(int64(b.cfg.JitterMax)+1))
}

func (b base[T]) newEnvelope(value T, now time.Time) CachedValue[T] {
	return newCachedValue(value, b.cfg.BaseTTL, b.jitterComponent(), b.cfg.SoftTTLRatio, now)
}

// jitterComponent draws only the jitter term fed into CachedValue's
// constructor, which adds BaseTTL itself. It is a separate draw from
// jitteredTTL's, taken from the same global math/rand source.
func (b base[T]) jitterComponent() time.Duration {
	if b.cfg.JitterMax <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(b.cfg.JitterMax) + 1))
}
