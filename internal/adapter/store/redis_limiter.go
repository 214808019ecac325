package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const usageKeyPrefix = "zappy:usage:"

// RedisLimiter enforces a per-user token budget over a rolling window.
type RedisLimiter struct {
	client *redis.Client
	limit  int           // Max tokens allowed per window
	window time.Duration // 0 keeps usage forever
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (r *RedisLimiter) CheckLimit(ctx context.Context, userID string) (bool, error) {
	if r.limit <= 0 {
		return true, nil
	}
	val, err := r.client.Get(ctx, usageKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return true, nil // No usage yet
	}
	if err != nil {
		return false, fmt.Errorf("reading usage: %w", err)
	}
	usage, _ := strconv.Atoi(val)
	return usage < r.limit, nil
}

func (r *RedisLimiter) Increment(ctx context.Context, userID string, tokens int) error {
	key := usageKeyPrefix + userID
	pipe := r.client.TxPipeline()
	pipe.IncrBy(ctx, key, int64(tokens))
	if r.window > 0 {
		pipe.ExpireNX(ctx, key, r.window)
	}
	_, err := pipe.Exec(ctx)
	return err
}
