package port

import (
	"context"
	"errors"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var expectedConditions = []error{
	ErrNotFound,
	ErrAlreadyExists,
	ErrCodeMismatch,
	ErrAttemptsExceeded,
	ErrSessionMismatch,
	ErrInvalidToken,
	ErrSignatureMismatch,
}

func isExpected(err error) bool {
	for _, cond := range expectedConditions {
		if errors.Is(err, cond) {
			return true
		}
	}
	return false
}

// Observe runs one port call and logs its outcome: debug on success, warn on
// a known condition, error otherwise. Every decorator in this package routes
// through it.
func Observe[T any](ctx context.Context, logger *zap.Logger, port, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	result, err := fn(ctx)

	fields := []zap.Field{
		zap.String("port", port),
		zap.String("op", op),
		zap.Duration("duration", time.Since(start)),
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}

	switch {
	case err == nil:
		logger.Debug("port call succeeded", fields...)
	case isExpected(err):
		logger.Warn("port call rejected", append(fields, zap.Error(err))...)
	default:
		logger.Error("port call failed", append(fields, zap.Error(err))...)
	}
	return result, err
}

func observeErr(ctx context.Context, logger *zap.Logger, port, op string, fn func(context.Context) error) error {
	_, err := Observe(ctx, logger, port, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
