package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	platformredis "cultivar/internal/platform/redis"
)

const redisKeyPrefix = "cultivar:state:"

// RedisStore implements Store against a shared Redis instance. Used when the
// core runs hosted (development shells, emulator farms) rather than embedded
// on a device.
type RedisStore struct {
	client *platformredis.Client
}

func NewRedisStore(client *platformredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis remove %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
