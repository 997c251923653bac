package signature

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "petmail:webhook-token:"

type redisTokenCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisTokenCache keeps each token for ttl, which should cover the
// signature replay window on both sides of now.
func NewRedisTokenCache(rdb *redis.Client, ttl time.Duration) TokenCache {
	return &redisTokenCache{rdb: rdb, ttl: ttl}
}

func (c *redisTokenCache) Seen(ctx context.Context, token string) (bool, error) {
	n, err := c.rdb.Exists(ctx, tokenKeyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("token cache EXISTS: %w", err)
	}
	return n > 0, nil
}

func (c *redisTokenCache) Remember(ctx context.Context, token string) error {
	if err := c.rdb.Set(ctx, tokenKeyPrefix+token, 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("token cache SET: %w", err)
	}
	return nil
}
