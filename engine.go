package cache

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Engine builds RemoteStore once and exposes every strategy over a single
// Redis client and Config, so a caller (the HTTP layer, the load
// generator) can pick a strategy by name and compare them side by side.
type Engine[T any] struct {
	Basic          *BasicCacheStrategy[T]
	Jitter         *JitterCacheStrategy[T]
	JitterLock     *JitterLockCacheStrategy[T]
	JitterSWR      *JitterSwrCacheStrategy[T]
	FullProtection *FullProtectionCacheStrategy[T]

	byName map[string]Strategy[T]
}

// NewEngine wires every strategy against the same Redis client and Config.
func NewEngine[T any](rdb *redis.Client, cfg Config, log *zap.Logger) (*Engine[T], error) {
	if log == nil {
		log = zap.NewNop()
	}
	store := newRedisStore(rdb, log)

	jitterSWR, err := NewJitterSwrCacheStrategy[T](store, cfg, log)
	if err != nil {
		return nil, err
	}
	full, err := NewFullProtectionCacheStrategy[T](store, cfg, log)
	if err != nil {
		return nil, err
	}

	e := &Engine[T]{
		Basic:          NewBasicCacheStrategy[T](store, cfg, log),
		Jitter:         NewJitterCacheStrategy[T](store, cfg, log),
		JitterLock:     NewJitterLockCacheStrategy[T](store, cfg, log),
		JitterSWR:      jitterSWR,
		FullProtection: full,
	}
	e.byName = map[string]Strategy[T]{
		e.Basic.StrategyName():          e.Basic,
		e.Jitter.StrategyName():         e.Jitter,
		e.JitterLock.StrategyName():     e.JitterLock,
		e.JitterSWR.StrategyName():      e.JitterSWR,
		e.FullProtection.StrategyName(): e.FullProtection,
	}
	return e, nil
}

// ByName looks a strategy up by its stable name.
func (e *Engine[T]) ByName(name string) (Strategy[T], bool) {
	s, ok := e.byName[name]
	return s, ok
}

// Names returns the five stable strategy names.
func (e *Engine[T]) Names() []string {
	return []string{
		e.Basic.StrategyName(),
		e.Jitter.StrategyName(),
		e.JitterSWR.StrategyName(),
		e.JitterLock.StrategyName(),
		e.FullProtection.StrategyName(),
	}
}

// Close releases the background worker pools owned by jitter-swr and
// full-protection.
func (e *Engine[T]) Close() {
	e.JitterSWR.Close()
	e.FullProtection.Close()
}
