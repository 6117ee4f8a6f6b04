package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"users-service/internal/models"
	"users-service/internal/port"
	"users-service/internal/util"
)

// VerificationService sends verification codes and exchanges verified codes
// for operation-scoped authentication sessions.
type VerificationService struct {
	d Dependencies
}

func NewVerificationService(d Dependencies) *VerificationService {
	return &VerificationService{d: d}
}

func normalizeContact(identifier string) (string, error) {
	identifier = util.NormalizeIdentifier(identifier)
	if !util.IsEmail(identifier) && !util.IsPhone(identifier) {
		return "", invalid("identifier", "must be an email or a phone")
	}
	return identifier, nil
}

// SendVerificationCode issues a fresh code for identifier and delivers it.
// With checkUserExists the identifier must already belong to a user, as for
// password reset.
func (s *VerificationService) SendVerificationCode(ctx context.Context, identifier string, checkUserExists bool) error {
	identifier, err := normalizeContact(identifier)
	if err != nil {
		return err
	}

	if checkUserExists {
		_, err := s.d.Users.GetByEmailOrPhone(ctx, identifier)
		if errors.Is(err, port.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}
	}

	allowed, err := s.d.SendLimiter.Allow(ctx, identifier)
	if err != nil {
		return fmt.Errorf("failed to check send limit: %w", err)
	}
	if !allowed {
		return ErrTooManyRequests
	}

	code, err := s.d.Codes.GenerateCode(ctx, identifier)
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}
	if err := s.d.Notifier.SendCode(ctx, identifier, code); err != nil {
		return fmt.Errorf("failed to deliver code: %w", err)
	}

	s.d.logger().Info("Verification code sent", util.Identifier(identifier))
	return nil
}

// VerifyCode checks code against the one issued for identifier. It neither
// consumes the code nor issues a session.
func (s *VerificationService) VerifyCode(ctx context.Context, identifier, code string) error {
	identifier, err := normalizeContact(identifier)
	if err != nil {
		return err
	}
	if code == "" {
		return fieldError("code", ErrIncorrectCode)
	}
	if err := s.d.Codes.ValidateCode(ctx, identifier, code); err != nil {
		return translateCode(err)
	}
	return nil
}

// GenerateAuthSession issues a session for identifier scoped to op. Callers
// must have verified a code for identifier first.
func (s *VerificationService) GenerateAuthSession(ctx context.Context, identifier string, op models.Operation) (models.AuthenticationSession, error) {
	identifier, err := normalizeContact(identifier)
	if err != nil {
		return models.AuthenticationSession{}, err
	}
	if !op.Valid() {
		return models.AuthenticationSession{}, invalid("operation", "unknown operation")
	}

	session, err := s.d.AuthSessions.GenerateSession(ctx, identifier, op)
	if err != nil {
		return models.AuthenticationSession{}, fmt.Errorf("failed to generate session: %w", err)
	}
	return session, nil
}

// VerifyCodeAndIssueSession verifies code, issues a session scoped to op and
// then discards the code so it cannot be used again.
func (s *VerificationService) VerifyCodeAndIssueSession(ctx context.Context, identifier, code string, op models.Operation) (models.AuthenticationSession, error) {
	if !op.Valid() {
		return models.AuthenticationSession{}, invalid("operation", "unknown operation")
	}
	if err := s.VerifyCode(ctx, identifier, code); err != nil {
		return models.AuthenticationSession{}, err
	}

	session, err := s.GenerateAuthSession(ctx, identifier, op)
	if err != nil {
		return models.AuthenticationSession{}, err
	}

	identifier = util.NormalizeIdentifier(identifier)
	if err := s.d.Codes.ClearCode(ctx, identifier); err != nil {
		s.d.logger().Warn("Failed to clear verification code", util.Identifier(identifier), zap.Error(err))
	}
	return session, nil
}
