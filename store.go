package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RemoteStore is the remote key-value store contract: string keys, typed
// byte-slice values, TTL, and an atomic set-if-absent. CompareAndDelete is
// the server-side atomic script safe lock release needs.
type RemoteStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	CompareAndDelete(ctx context.Context, key, expectedValue string) (bool, error)
}

// redisStore is the production RemoteStore, built around the same
// Get/Set calls used elsewhere and generalized with the
// SetIfAbsent/CompareAndDelete primitives the lock needs.
type redisStore struct {
	rdb *redis.Client
	log *zap.Logger
}

func newRedisStore(rdb *redis.Client, log *zap.Logger) *redisStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &redisStore{rdb: rdb, log: log}
}

// compareAndDeleteScript deletes key only if its current value equals
// ARGV[1]. This is the fenced unlock a holder whose TTL already expired
// and was claimed by someone else must not delete the new holder's record.
const compareAndDeleteScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errStoreMiss
		}
		s.log.Warn("cache: remote store get failed, treating as miss", zap.String("key", key), zap.Error(err))
		return nil, errStoreMiss
	}
	return data, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		s.log.Warn("cache: remote store set failed, dropping write", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (s *redisStore) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		s.log.Warn("cache: remote store setnx failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return ok, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.Warn("cache: remote store delete failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (s *redisStore) CompareAndDelete(ctx context.Context, key, expectedValue string) (bool, error) {
	res, err := s.rdb.Eval(ctx, compareAndDeleteScript, []string{key}, expectedValue).Result()
	if err != nil {
		s.log.Warn("cache: compare-and-delete script failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	n, _ := res.(int64)
	return n > 0, nil
}
