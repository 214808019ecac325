package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"zappy-core/internal/domain/entity"
)

const contextKeyPrefix = "zappy:context:"

// RedisContextCache shares category context blocks between instances and restarts.
type RedisContextCache struct {
	client *redis.Client
}

func NewRedisContextCache(client *redis.Client) *RedisContextCache {
	return &RedisContextCache{client: client}
}

func (c *RedisContextCache) Get(ctx context.Context, category entity.Category) (string, bool, error) {
	val, err := c.client.Get(ctx, contextKeyPrefix+string(category)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisContextCache) Set(ctx context.Context, category entity.Category, block string, ttl time.Duration) error {
	return c.client.Set(ctx, contextKeyPrefix+string(category), block, ttl).Err()
}
