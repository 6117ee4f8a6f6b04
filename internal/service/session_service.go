package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"users-service/internal/models"
	"users-service/internal/port"
	"users-service/internal/util"
)

// SessionService owns the token lifecycle: login, registration, refresh,
// logout and password reset.
type SessionService struct {
	d Dependencies
}

func NewSessionService(d Dependencies) *SessionService {
	return &SessionService{d: d}
}

// Login resolves the user by phone or username and checks the password. An
// unknown login and a wrong password both yield ErrUserNotFound.
func (s *SessionService) Login(ctx context.Context, creds models.Credentials) (models.TokenPair, error) {
	login := util.NormalizeIdentifier(creds.Login)
	if login == "" || creds.Password == "" {
		return models.TokenPair{}, ErrUserNotFound
	}

	user, err := s.d.Users.GetByPhoneOrUsername(ctx, login)
	if errors.Is(err, port.ErrNotFound) {
		return models.TokenPair{}, ErrUserNotFound
	}
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to load user: %w", err)
	}
	if !s.d.Hasher.Compare(user.PasswordHash, creds.Password) {
		return models.TokenPair{}, ErrUserNotFound
	}

	pair, err := s.d.issueTokenPair(ctx, user)
	if err != nil {
		return models.TokenPair{}, err
	}
	s.d.logger().Info("User logged in", zap.Int64("user_id", user.ID))
	return pair, nil
}

func validateRegistration(reg models.Registration) error {
	if reg.VerificationSource != models.FieldEmail && reg.VerificationSource != models.FieldPhone {
		return invalid("verification_source", "must be email or phone")
	}
	if reg.Email == "" && reg.Phone == "" {
		return invalid(string(reg.VerificationSource), "email or phone is required")
	}
	if reg.SourceValue() == "" {
		return invalid(string(reg.VerificationSource), "verification source is empty")
	}
	if reg.Email != "" && !util.IsEmail(reg.Email) {
		return invalid("email", "malformed email")
	}
	if reg.Phone != "" && !util.IsPhone(reg.Phone) {
		return invalid("phone", "malformed phone")
	}
	if !util.IsUsername(reg.Username) {
		return invalid("username", "3-32 letters, digits, '_' or '.', not a phone number")
	}
	if strings.TrimSpace(reg.FirstName) == "" {
		return invalid("first_name", "first name is required")
	}
	if strings.TrimSpace(reg.LastName) == "" {
		return invalid("last_name", "last name is required")
	}
	return validatePassword("password", reg.Password)
}

// Authenticate registers a new user. The verification source must carry an
// authentication-scoped session, and a submitted avatar must be signed.
// Nothing is stored unless every check passes.
func (s *SessionService) Authenticate(ctx context.Context, session string, reg models.Registration) (models.TokenPair, error) {
	reg.Email = util.NormalizeIdentifier(reg.Email)
	reg.Phone = util.NormalizeIdentifier(reg.Phone)
	reg.Username = strings.TrimSpace(reg.Username)
	if err := validateRegistration(reg); err != nil {
		return models.TokenPair{}, err
	}

	source := reg.SourceValue()
	if err := s.d.AuthSessions.VerifySession(ctx, source, models.OperationAuthentication, session); err != nil {
		return models.TokenPair{}, translateSession(err)
	}

	var avatar *models.SavedFile
	if reg.Avatar != nil {
		if err := s.d.Signatures.Verify(*reg.Avatar); err != nil {
			return models.TokenPair{}, translateSignature(err)
		}
		saved := reg.Avatar.ToSaved()
		avatar = &saved
	}

	hash, err := s.d.Hasher.Hash(reg.Password)
	if err != nil {
		return models.TokenPair{}, translateHash(err)
	}

	user := models.User{
		Username:       reg.Username,
		PasswordHash:   hash,
		FirstName:      strings.TrimSpace(reg.FirstName),
		LastName:       strings.TrimSpace(reg.LastName),
		MiddleName:     strings.TrimSpace(reg.MiddleName),
		Email:          reg.Email,
		Phone:          reg.Phone,
		EmailConfirmed: reg.VerificationSource == models.FieldEmail,
		PhoneConfirmed: reg.VerificationSource == models.FieldPhone,
		Avatar:         avatar,
	}.Touch(s.d.now())

	err = s.d.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if avatar != nil {
			stored, err := s.d.Files.Save(ctx, *avatar)
			if err != nil {
				return fmt.Errorf("failed to save avatar: %w", err)
			}
			user = user.WithAvatar(&stored)
		}
		saved, err := s.d.Users.Save(ctx, user)
		if err != nil {
			return translateSave(err)
		}
		user = saved
		return nil
	})
	if err != nil {
		return models.TokenPair{}, err
	}

	pair, err := s.d.issueTokenPair(ctx, user)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := s.d.AuthSessions.ClearAll(ctx, source); err != nil {
		s.d.logger().Warn("Failed to clear verification state", util.Identifier(source), zap.Error(err))
	}
	s.d.publishCreated(ctx, user)
	s.d.logger().Info("User registered",
		zap.Int64("user_id", user.ID),
		zap.String("verification_source", string(reg.VerificationSource)))
	return pair, nil
}

// Refresh issues a new access token for a refresh token that is still a live
// session. The refresh token itself is returned unchanged.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	user, err := s.d.userFromToken(ctx, refreshToken)
	if err != nil {
		return models.TokenPair{}, err
	}

	live, err := s.d.RefreshSessions.HasSession(ctx, user.ID, strings.TrimSpace(refreshToken))
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to check refresh session: %w", err)
	}
	if !live {
		return models.TokenPair{}, ErrNoSessionsToRefresh
	}

	access, err := s.d.Tokens.CreateToken(user, models.TokenAccess)
	if err != nil {
		return models.TokenPair{}, err
	}
	return models.TokenPair{
		AccessToken:  access,
		RefreshToken: strings.TrimSpace(refreshToken),
		User:         s.d.withDefaultAvatar(user),
	}, nil
}

// Logout ends the session of one refresh token. A token that is not a live
// session is rejected.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	user, err := s.d.userFromToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	refreshToken = strings.TrimSpace(refreshToken)

	live, err := s.d.RefreshSessions.HasSession(ctx, user.ID, refreshToken)
	if err != nil {
		return fmt.Errorf("failed to check refresh session: %w", err)
	}
	if !live {
		return ErrIncorrectToken
	}
	if err := s.d.RefreshSessions.Delete(ctx, user.ID, refreshToken); err != nil {
		return fmt.Errorf("failed to delete refresh session: %w", err)
	}
	return nil
}

// LogoutAll ends every session of the token owner.
func (s *SessionService) LogoutAll(ctx context.Context, token string) error {
	user, err := s.d.userFromToken(ctx, token)
	if err != nil {
		return err
	}
	if err := s.d.RefreshSessions.DeleteAll(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete refresh sessions: %w", err)
	}
	s.d.logger().Info("All sessions revoked", zap.Int64("user_id", user.ID))
	return nil
}

// ValidateToken reports whether token carries a valid signature and has not
// expired. It does not consult the session store.
func (s *SessionService) ValidateToken(_ context.Context, token string) bool {
	_, err := s.d.Tokens.DecodeToken(strings.TrimSpace(token))
	return err == nil
}

// ResetPassword sets a new password for the owner of identifier, revokes
// every existing session and signs the user in again.
func (s *SessionService) ResetPassword(ctx context.Context, identifier, session, newPassword string) (models.TokenPair, error) {
	identifier = util.NormalizeIdentifier(identifier)
	if !util.IsEmail(identifier) && !util.IsPhone(identifier) {
		return models.TokenPair{}, invalid("identifier", "must be an email or a phone")
	}
	if err := validatePassword("password", newPassword); err != nil {
		return models.TokenPair{}, err
	}

	user, err := s.d.Users.GetByEmailOrPhone(ctx, identifier)
	if errors.Is(err, port.ErrNotFound) {
		return models.TokenPair{}, ErrUserNotFound
	}
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.d.AuthSessions.VerifySession(ctx, identifier, models.OperationResetPassword, session); err != nil {
		return models.TokenPair{}, translateSession(err)
	}

	hash, err := s.d.Hasher.Hash(newPassword)
	if err != nil {
		return models.TokenPair{}, translateHash(err)
	}
	user, err = s.d.Users.Save(ctx, user.WithPasswordHash(hash))
	if err != nil {
		return models.TokenPair{}, translateSave(err)
	}

	if err := s.d.RefreshSessions.DeleteAll(ctx, user.ID); err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	s.d.consumeSession(ctx, identifier, models.OperationResetPassword)

	pair, err := s.d.issueTokenPair(ctx, user)
	if err != nil {
		return models.TokenPair{}, err
	}
	s.d.logger().Info("Password reset", zap.Int64("user_id", user.ID))
	return pair, nil
}
