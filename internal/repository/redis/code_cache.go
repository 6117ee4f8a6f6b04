package redis

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"go.uber.org/zap"

	"users-service/internal/client"
	"users-service/internal/port"
	"users-service/internal/util"
)

const codeLength = 6

// CodeCache stores one verification code per identifier together with a
// validation attempts counter that shares the code's TTL.
type CodeCache struct {
	client      *client.RedisClient
	ttl         time.Duration
	maxAttempts int64
	random      io.Reader
}

func NewCodeCache(client *client.RedisClient, ttl time.Duration, maxAttempts int) *CodeCache {
	return &CodeCache{
		client:      client,
		ttl:         ttl,
		maxAttempts: int64(maxAttempts),
		random:      rand.Reader,
	}
}

func randomDigits(r io.Reader, n int) (string, error) {
	ten := big.NewInt(10)
	digits := make([]byte, n)
	for i := range digits {
		d, err := rand.Int(r, ten)
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + d.Int64())
	}
	return string(digits), nil
}

// GenerateCode overwrites any previous code for identifier and resets the
// attempts counter to zero, both with the configured TTL.
func (c *CodeCache) GenerateCode(ctx context.Context, identifier string) (string, error) {
	ctx, cancel := c.client.WithContext(ctx, opTimeout)
	defer cancel()

	code, err := randomDigits(c.random, codeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, codeKey(identifier), code, c.ttl)
	pipe.Set(ctx, attemptsKey(identifier), 0, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to store verification code", util.Identifier(identifier), zap.Error(err))
		return "", fmt.Errorf("failed to store verification code: %w", err)
	}

	util.Debug("Verification code stored", util.Identifier(identifier), zap.Duration("ttl", c.ttl))
	return code, nil
}

// ValidateCode counts the attempt first and only then compares codes, so
// once the ceiling is passed even the right code is refused. An expired
// code looks exactly like a wrong one.
func (c *CodeCache) ValidateCode(ctx context.Context, identifier, code string) error {
	ctx, cancel := c.client.WithContext(ctx, opTimeout)
	defer cancel()

	// A counter without a code still gets the code TTL, so strays stay bounded.
	attempts, err := c.client.IncrWindow(ctx, attemptsKey(identifier), c.ttl)
	if err != nil {
		util.Error("Failed to count verification attempt", util.Identifier(identifier), zap.Error(err))
		return fmt.Errorf("failed to count verification attempt: %w", err)
	}
	if attempts > c.maxAttempts {
		return fmt.Errorf("%w: %d of %d", port.ErrAttemptsExceeded, attempts, c.maxAttempts)
	}

	stored, err := c.client.Get(ctx, codeKey(identifier))
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return port.ErrCodeMismatch
		}
		util.Error("Failed to read verification code", util.Identifier(identifier), zap.Error(err))
		return fmt.Errorf("failed to read verification code: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return port.ErrCodeMismatch
	}
	return nil
}

// ClearCode removes the code and its attempts counter.
func (c *CodeCache) ClearCode(ctx context.Context, identifier string) error {
	ctx, cancel := c.client.WithContext(ctx, opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, codeKey(identifier), attemptsKey(identifier)); err != nil {
		util.Error("Failed to clear verification code", util.Identifier(identifier), zap.Error(err))
		return fmt.Errorf("failed to clear verification code: %w", err)
	}
	return nil
}
