package credstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores values in Redis under prefix + ":" + key.
type RedisBackend struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisBackend creates a [RedisBackend]. An empty prefix defaults to "gs".
func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "gs"
	}
	return &RedisBackend{redis: client, prefix: prefix}
}

func (r *RedisBackend) key(key string) string {
	return r.prefix + ":" + key
}

// Read performs a single GET.
func (r *RedisBackend) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := r.redis.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

// Write performs a single SET without expiry; the Auth Server owns token lifetime.
func (r *RedisBackend) Write(ctx context.Context, key string, value []byte) error {
	return r.redis.Set(ctx, r.key(key), value, 0).Err()
}

// Delete is idempotent.
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.redis.Del(ctx, r.key(key)).Err()
}
