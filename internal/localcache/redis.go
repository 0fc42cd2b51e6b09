package localcache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every key written to Redis.
const DefaultNamespace = "daytask:local"

// RedisBackend stores values in Redis under namespace:key.
type RedisBackend struct {
	client    *redis.Client
	namespace string
}

// NewRedisBackend creates a backend; an empty namespace uses DefaultNamespace.
func NewRedisBackend(client *redis.Client, namespace string) *RedisBackend {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisBackend{client: client, namespace: namespace}
}

func (b *RedisBackend) key(k string) string {
	return b.namespace + ":" + k
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.client.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	return b.client.Set(ctx, b.key(key), value, 0).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, b.key(key)).Err()
}
