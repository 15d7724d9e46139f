package cache

import (
	"context"

	"go.uber.org/zap"
)

// JitterCacheStrategy is identical to Basic except the write TTL is
// BaseTTL + U{0, JitterMax}, de-synchronizing expirations that were
// populated in lockstep.
type JitterCacheStrategy[T any] struct {
	b base[T]
}

func NewJitterCacheStrategy[T any](store RemoteStore, cfg Config, log *zap.Logger) *JitterCacheStrategy[T] {
	return &JitterCacheStrategy[T]{b: newBase[T]("jitter", store, nil, cfg, log)}
}

func (s *JitterCacheStrategy[T]) StrategyName() string { return "jitter" }

func (s *JitterCacheStrategy[T]) GetOrLoad(ctx context.Context, key string, loader Loader[T]) (Result[T], error) {
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
		s.b.log.Warn("cache: write-after-miss failed", zap.String("strategy", "jitter"), zap.String("key", key), zap.Error(err))
	}
	return Result[T]{Value: v, Found: true}, nil
}

func (s *JitterCacheStrategy[T]) Invalidate(ctx context.Context, key string) error {
	return s.b.deleteKey(ctx, key)
}
