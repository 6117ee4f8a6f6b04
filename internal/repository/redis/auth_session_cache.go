package redis

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"users-service/internal/client"
	"users-service/internal/models"
	"users-service/internal/port"
	"users-service/internal/util"
)

// AuthSessionCache keeps one authentication session per identifier and
// operation. A session for one operation never satisfies another.
type AuthSessionCache struct {
	client *client.RedisClient
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthSessionCache(client *client.RedisClient, ttl time.Duration) *AuthSessionCache {
	return &AuthSessionCache{client: client, ttl: ttl, now: time.Now}
}

func newSessionToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (c *AuthSessionCache) GenerateSession(ctx context.Context, identifier string, op models.Operation) (models.AuthenticationSession, error) {
	ctx, cancel := c.client.WithContext(ctx, opTimeout)
	defer cancel()

	token, err := newSessionToken()
	if err != nil {
		return models.AuthenticationSession{}, fmt.Errorf("failed to generate auth session: %w", err)
	}

	expiresAt := c.now().Add(c.ttl)
	if err := c.client.Set(ctx, authSessionKey(identifier, op), token, c.ttl); err != nil {
		util.Error("Failed to store auth session",
			util.Identifier(identifier),
			zap.String("operation", string(op)),
			zap.Error(err))
		return models.AuthenticationSession{}, fmt.Errorf("failed to store auth session: %w", err)
	}

	util.Debug("Auth session stored",
		util.Identifier(identifier),
		zap.String("operation", string(op)),
		zap.Duration("ttl", c.ttl))

	return models.AuthenticationSession{Session: token, Operation: op, ExpiresAt: expiresAt}, nil
}

// VerifySession succeeds when session equals the stored token for
// (identifier, op). It does not consume the session.
func (c *AuthSessionCache) VerifySession(ctx context.Context, identifier string, op models.Operation, session string) error {
	ctx, cancel := c.client.WithContext(ctx, opTimeout)
	defer cancel()

	stored, err := c.client.Get(ctx, authSessionKey(identifier, op))
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return port.ErrSessionMismatch
		}
		util.Error("Failed to read auth session", util.Identifier(identifier), zap.Error(err))
		return fmt.Errorf("failed to read auth session: %w", err)
	}

	if session == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(session)) != 1 {
		return port.ErrSessionMismatch
	}
	return nil
}

func (c *AuthSessionCache) DeleteSession(ctx context.Context, identifier string, op models.Operation) error {
	ctx, cancel := c.client.WithContext(ctx, opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, authSessionKey(identifier, op)); err != nil {
		return fmt.Errorf("failed to delete auth session: %w", err)
	}
	return nil
}

// ClearAll drops every session of identifier plus its code and attempts.
func (c *AuthSessionCache) ClearAll(ctx context.Context, identifier string) error {
	ctx, cancel := c.client.WithContext(ctx, opTimeout)
	defer cancel()

	keys := []string{codeKey(identifier), attemptsKey(identifier)}
	for _, op := range models.Operations {
		keys = append(keys, authSessionKey(identifier, op))
	}

	if err := c.client.Del(ctx, keys...); err != nil {
		util.Error("Failed to clear verification state", util.Identifier(identifier), zap.Error(err))
		return fmt.Errorf("failed to clear verification state: %w", err)
	}
	util.Debug("Verification state cleared", util.Identifier(identifier))
	return nil
}
