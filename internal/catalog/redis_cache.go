package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps one hash per wizard session; the hash expires as a whole.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	if client == nil {
		panic("catalog: redis client cannot be nil")
	}
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, sessionID, field string) ([]byte, bool, error) {
	data, err := c.client.HGet(ctx, cacheKey(sessionID), field).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("catalog: read cache: %w", err)
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, sessionID, field string, value []byte, ttl time.Duration) error {
	key := cacheKey(sessionID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, field, value)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("catalog: write cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Drop(ctx context.Context, sessionID string) error {
	if err := c.client.Del(ctx, cacheKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("catalog: drop cache: %w", err)
	}
	return nil
}

func cacheKey(sessionID string) string {
	return fmt.Sprintf("wizard:catalog:%s", sessionID)
}
