package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"users-service/internal/models"
	"users-service/internal/port"
	"users-service/internal/util"
)

// Dependencies are the collaborators shared by every service.
type Dependencies struct {
	Users           port.UsersStore
	Files           port.FilesStore
	Codes           port.CodeStore
	AuthSessions    port.AuthSessionStore
	RefreshSessions port.RefreshSessionStore
	SendLimiter     port.SendRateLimiter
	Tokens          port.TokenCodec
	Hasher          port.PasswordHasher
	Signatures      port.FileSignatureVerifier
	Tx              port.Transactor
	Notifier        port.NotificationSender
	Events          port.UserEventPublisher
	Logger          *zap.Logger
	Now             func() time.Time
}

func (d Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Dependencies) logger() *zap.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return util.Get()
}

// userFromToken resolves the owner of a signed token. Every failure short of
// an infrastructure error is reported as ErrIncorrectToken.
func (d Dependencies) userFromToken(ctx context.Context, token string) (models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.User{}, ErrTokenRequired
	}
	userID, err := d.Tokens.DecodeToken(token)
	if err != nil {
		return models.User{}, ErrIncorrectToken
	}
	user, err := d.Users.GetByID(ctx, userID)
	if errors.Is(err, port.ErrNotFound) {
		return models.User{}, ErrIncorrectToken
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to load token owner: %w", err)
	}
	return user, nil
}

// withDefaultAvatar attaches the generated avatar to a user read for a
// response. The result must not be saved.
func (d Dependencies) withDefaultAvatar(user models.User) models.User {
	if user.Avatar != nil {
		return user
	}
	avatar := d.Files.GetDefault(user)
	return user.WithAvatar(&avatar)
}

// issueTokenPair signs a new access and refresh token and registers the
// refresh token as a live session.
func (d Dependencies) issueTokenPair(ctx context.Context, user models.User) (models.TokenPair, error) {
	access, err := d.Tokens.CreateToken(user, models.TokenAccess)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := d.Tokens.CreateToken(user, models.TokenRefresh)
	if err != nil {
		return models.TokenPair{}, err
	}
	if err := d.RefreshSessions.Save(ctx, user.ID, refresh); err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to save refresh session: %w", err)
	}
	return models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         d.withDefaultAvatar(user),
	}, nil
}

// Event delivery is best effort: failures are logged and dropped.
func (d Dependencies) publishCreated(ctx context.Context, user models.User) {
	if err := d.Events.SendUserCreated(ctx, user); err != nil {
		d.logger().Warn("Failed to publish user_created", zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

func (d Dependencies) publishChanged(ctx context.Context, user models.User) {
	if err := d.Events.SendUserChanged(ctx, user); err != nil {
		d.logger().Warn("Failed to publish user_changed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

// consumeSession drops an authentication session after the operation it gated
// succeeded. A failure leaves the session to expire on its own.
func (d Dependencies) consumeSession(ctx context.Context, identifier string, op models.Operation) {
	if err := d.AuthSessions.DeleteSession(ctx, identifier, op); err != nil {
		d.logger().Warn("Failed to consume authentication session",
			util.Identifier(identifier),
			zap.String("operation", string(op)),
			zap.Error(err))
	}
}

func validatePassword(field, password string) error {
	if strings.TrimSpace(password) == "" {
		return invalid(field, "password is required")
	}
	return nil
}
