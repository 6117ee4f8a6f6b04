package redis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"users-service/internal/client"
	"users-service/internal/util"
)

// SessionCache tracks live refresh tokens in one set per user. The set has
// no TTL; entries leave it only through Delete or DeleteAll.
type SessionCache struct {
	client *client.RedisClient
}

func NewSessionCache(client *client.RedisClient) *SessionCache {
	return &SessionCache{client: client}
}

func (c *SessionCache) HasSession(ctx context.Context, userID int64, token string) (bool, error) {
	ctx, cancel := c.client.WithContext(ctx, opTimeout)
	defer cancel()

	ok, err := c.client.SIsMember(ctx, sessionsKey(userID), token)
	if err != nil {
		util.Error("Failed to check refresh session", zap.Int64("user_id", userID), zap.Error(err))
		return false, fmt.Errorf("failed to check refresh session: %w", err)
	}
	return ok, nil
}

// Save adds token next to any existing sessions of the user.
func (c *SessionCache) Save(ctx context.Context, userID int64, token string) error {
	ctx, cancel := c.client.WithContext(ctx, opTimeout)
	defer cancel()

	if err := c.client.SAdd(ctx, sessionsKey(userID), token); err != nil {
		util.Error("Failed to save refresh session", zap.Int64("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to save refresh session: %w", err)
	}
	util.Debug("Refresh session saved", zap.Int64("user_id", userID))
	return nil
}

func (c *SessionCache) Delete(ctx context.Context, userID int64, token string) error {
	ctx, cancel := c.client.WithContext(ctx, opTimeout)
	defer cancel()

	if _, err := c.client.SRem(ctx, sessionsKey(userID), token); err != nil {
		util.Error("Failed to delete refresh session", zap.Int64("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to delete refresh session: %w", err)
	}
	util.Info("Refresh session deleted", zap.Int64("user_id", userID))
	return nil
}

func (c *SessionCache) DeleteAll(ctx context.Context, userID int64) error {
	ctx, cancel := c.client.WithContext(ctx, opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, sessionsKey(userID)); err != nil {
		util.Error("Failed to delete refresh sessions", zap.Int64("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to delete refresh sessions: %w", err)
	}
	util.Info("All refresh sessions deleted", zap.Int64("user_id", userID))
	return nil
}
