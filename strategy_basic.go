package cache

import (
	"context"

	"go.uber.org/zap"
)

// BasicCacheStrategy is plain read-through with no stampede protection at
// all. A burst of N concurrent misses yields up to N loader calls; it
// exists as the baseline the other four strategies are compared against.
type BasicCacheStrategy[T any] struct {
	b base[T]
}

// NewBasicCacheStrategy constructs the "basic" strategy.
func NewBasicCacheStrategy[T any](store RemoteStore, cfg Config, log *zap.Logger) *BasicCacheStrategy[T] {
	return &BasicCacheStrategy[T]{b: newBase[T]("basic", store, nil, cfg, log)}
}

func (s *BasicCacheStrategy[T]) StrategyName() string { return "basic" }

func (s *BasicCacheStrategy[T]) GetOrLoad(ctx context.Context, key string, loader Loader[T]) (Result[T], error) {
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
	if err := s.b.writeBare(ctx, key, v, s.b.cfg.BaseTTL); err != nil {
		s.b.log.Warn("cache: write-after-miss failed", zap.String("strategy", "basic"), zap.String("key", key), zap.Error(err))
	}
	return Result[T]{Value: v, Found: true}, nil
}

func (s *BasicCacheStrategy[T]) Invalidate(ctx context.Context, key string) error {
	return s.b.deleteKey(ctx, key)
}
