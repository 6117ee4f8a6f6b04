package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"users-service/internal/client"
	"users-service/internal/util"
)

// RateLimitCache is a fixed-window counter limiting how many verification
// codes one identifier may request per window. A non-positive limit turns
// it off.
type RateLimitCache struct {
	client *client.RedisClient
	limit  int64
	window time.Duration
}

func NewRateLimitCache(client *client.RedisClient, limit int, window time.Duration) *RateLimitCache {
	return &RateLimitCache{client: client, limit: int64(limit), window: window}
}

func (c *RateLimitCache) Allow(ctx context.Context, identifier string) (bool, error) {
	if c.limit <= 0 {
		return true, nil
	}

	ctx, cancel := c.client.WithContext(ctx, opTimeout)
	defer cancel()

	count, err := c.client.IncrWindow(ctx, sendLimitKey(identifier), c.window)
	if err != nil {
		util.Error("Failed to increment send counter", util.Identifier(identifier), zap.Error(err))
		return false, fmt.Errorf("failed to increment send counter: %w", err)
	}

	if count > c.limit {
		util.Warn("Verification send limit reached",
			util.Identifier(identifier),
			zap.Int64("count", count),
			zap.Int64("limit", c.limit))
		return false, nil
	}
	return true, nil
}
