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

// UserService handles profile reads and changes of existing users.
type UserService struct {
	d Dependencies
}

func NewUserService(d Dependencies) *UserService {
	return &UserService{d: d}
}

// UserLookup selects a user by one of its unique keys. The first non-empty
// selector wins in the order ID, Username, Email, Phone.
type UserLookup struct {
	ID       int64
	Username string
	Email    string
	Phone    string
}

// GetUser reads a user for an authenticated caller.
func (s *UserService) GetUser(ctx context.Context, token string, lookup UserLookup) (models.User, error) {
	if _, err := s.d.userFromToken(ctx, token); err != nil {
		return models.User{}, err
	}

	var (
		user models.User
		err  error
	)
	switch {
	case lookup.ID > 0:
		user, err = s.d.Users.GetByID(ctx, lookup.ID)
	case lookup.Username != "":
		user, err = s.d.Users.GetByUsername(ctx, strings.TrimSpace(lookup.Username))
	case lookup.Email != "":
		user, err = s.d.Users.GetByEmail(ctx, util.NormalizeIdentifier(lookup.Email))
	case lookup.Phone != "":
		user, err = s.d.Users.GetByPhone(ctx, util.NormalizeIdentifier(lookup.Phone))
	default:
		return models.User{}, invalid("id", "one of id, username, email or phone is required")
	}
	if errors.Is(err, port.ErrNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to load user: %w", err)
	}
	return s.d.withDefaultAvatar(user), nil
}

func (s *UserService) GetUserByToken(ctx context.Context, token string) (models.User, error) {
	user, err := s.d.userFromToken(ctx, token)
	if err != nil {
		return models.User{}, err
	}
	return s.d.withDefaultAvatar(user), nil
}

// GetUserByRefreshToken resolves the owner of a refresh token that is still a
// live session.
func (s *UserService) GetUserByRefreshToken(ctx context.Context, token string) (models.User, error) {
	user, err := s.d.userFromToken(ctx, token)
	if err != nil {
		return models.User{}, err
	}
	live, err := s.d.RefreshSessions.HasSession(ctx, user.ID, strings.TrimSpace(token))
	if err != nil {
		return models.User{}, fmt.Errorf("failed to check refresh session: %w", err)
	}
	if !live {
		return models.User{}, ErrIncorrectToken
	}
	return s.d.withDefaultAvatar(user), nil
}

func (s *UserService) GetUsersByIDs(ctx context.Context, token string, ids []int64) ([]models.User, error) {
	if _, err := s.d.userFromToken(ctx, token); err != nil {
		return nil, err
	}
	users, err := s.d.Users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	for i := range users {
		users[i] = s.d.withDefaultAvatar(users[i])
	}
	return users, nil
}

// ConfirmField marks the caller's email or phone as confirmed. The current
// value must be proven by an authentication session of the matching update
// operation, which is consumed on success. Confirming an already confirmed
// field is a no-op.
func (s *UserService) ConfirmField(ctx context.Context, token, field, session string) (models.User, error) {
	f, err := models.ParseVerificationField(field)
	if err != nil {
		return models.User{}, invalid("field", "must be email or phone")
	}

	user, err := s.d.userFromToken(ctx, token)
	if err != nil {
		return models.User{}, err
	}
	value := user.Contact(f)
	if value == "" {
		return models.User{}, invalid("field", "not set")
	}
	if user.IsConfirmed(f) {
		return s.d.withDefaultAvatar(user), nil
	}

	op := models.OperationUpdatePhone
	if f == models.FieldEmail {
		op = models.OperationUpdateEmail
	}
	if err := s.d.AuthSessions.VerifySession(ctx, value, op, session); err != nil {
		return models.User{}, translateSession(err)
	}

	user, err = s.d.Users.Save(ctx, user.Confirm(f))
	if err != nil {
		return models.User{}, translateSave(err)
	}
	s.d.consumeSession(ctx, value, op)
	s.d.publishChanged(ctx, user)
	return s.d.withDefaultAvatar(user), nil
}

func (s *UserService) UpdateUser(ctx context.Context, token string, update models.ProfileUpdate) (models.User, error) {
	user, err := s.d.userFromToken(ctx, token)
	if err != nil {
		return models.User{}, err
	}

	update = models.ProfileUpdate{
		FirstName:  strings.TrimSpace(update.FirstName),
		LastName:   strings.TrimSpace(update.LastName),
		MiddleName: strings.TrimSpace(update.MiddleName),
		Status:     strings.TrimSpace(update.Status),
	}
	if update.IsEmpty() {
		return s.d.withDefaultAvatar(user), nil
	}

	user, err = s.d.Users.Save(ctx, user.WithProfile(update))
	if err != nil {
		return models.User{}, translateSave(err)
	}
	s.d.publishChanged(ctx, user)
	return s.d.withDefaultAvatar(user), nil
}

// UpdateAvatar replaces the avatar with a signed upload, or drops it back to
// the generated default when file is nil.
func (s *UserService) UpdateAvatar(ctx context.Context, token string, file *models.UploadingFile) (models.User, error) {
	user, err := s.d.userFromToken(ctx, token)
	if err != nil {
		return models.User{}, err
	}

	var avatar *models.SavedFile
	if file != nil {
		if err := s.d.Signatures.Verify(*file); err != nil {
			return models.User{}, translateSignature(err)
		}
		saved := file.ToSaved()
		avatar = &saved
	}

	err = s.d.Tx.WithinTx(ctx, func(ctx context.Context) error {
		next := user.WithAvatar(nil)
		if avatar != nil {
			stored, err := s.d.Files.Save(ctx, *avatar)
			if err != nil {
				return fmt.Errorf("failed to save avatar: %w", err)
			}
			next = next.WithAvatar(&stored)
		}
		saved, err := s.d.Users.Save(ctx, next)
		if err != nil {
			return translateSave(err)
		}
		user = saved
		return nil
	})
	if err != nil {
		return models.User{}, err
	}

	s.d.publishChanged(ctx, user)
	return s.d.withDefaultAvatar(user), nil
}

func (s *UserService) UpdatePassword(ctx context.Context, token, oldPassword, newPassword string) (models.User, error) {
	user, err := s.d.userFromToken(ctx, token)
	if err != nil {
		return models.User{}, err
	}
	if !s.d.Hasher.Compare(user.PasswordHash, oldPassword) {
		return models.User{}, fieldError("old_password", ErrIncorrectPassword)
	}
	if err := validatePassword("new_password", newPassword); err != nil {
		return models.User{}, err
	}

	hash, err := s.d.Hasher.Hash(newPassword)
	if err != nil {
		return models.User{}, translateHash(err)
	}
	user, err = s.d.Users.Save(ctx, user.WithPasswordHash(hash))
	if err != nil {
		return models.User{}, translateSave(err)
	}
	s.d.logger().Info("Password changed", zap.Int64("user_id", user.ID))
	return s.d.withDefaultAvatar(user), nil
}

// UpdateEmail binds a new email proven by an update_email session for that
// address.
func (s *UserService) UpdateEmail(ctx context.Context, token, session, email string) (models.User, error) {
	email = util.NormalizeIdentifier(email)
	if !util.IsEmail(email) {
		return models.User{}, invalid("email", "malformed email")
	}
	return s.updateContact(ctx, token, session, email, models.OperationUpdateEmail, models.User.WithEmail)
}

// UpdatePhone binds a new phone proven by an update_phone session for that
// number.
func (s *UserService) UpdatePhone(ctx context.Context, token, session, phone string) (models.User, error) {
	phone = util.NormalizeIdentifier(phone)
	if !util.IsPhone(phone) {
		return models.User{}, invalid("phone", "malformed phone")
	}
	return s.updateContact(ctx, token, session, phone, models.OperationUpdatePhone, models.User.WithPhone)
}

func (s *UserService) updateContact(
	ctx context.Context,
	token, session, value string,
	op models.Operation,
	apply func(models.User, string) models.User,
) (models.User, error) {
	user, err := s.d.userFromToken(ctx, token)
	if err != nil {
		return models.User{}, err
	}
	if err := s.d.AuthSessions.VerifySession(ctx, value, op, session); err != nil {
		return models.User{}, translateSession(err)
	}

	user, err = s.d.Users.Save(ctx, apply(user, value))
	if err != nil {
		return models.User{}, translateSave(err)
	}
	s.d.consumeSession(ctx, value, op)
	s.d.publishChanged(ctx, user)
	return s.d.withDefaultAvatar(user), nil
}

// SearchUsers lists users matching query for an authenticated caller.
func (s *UserService) SearchUsers(ctx context.Context, token, query string, page, perPage int) (models.Page[models.User], error) {
	if _, err := s.d.userFromToken(ctx, token); err != nil {
		return models.Page[models.User]{}, err
	}

	result, err := s.d.Users.Search(ctx, query, page, perPage)
	if err != nil {
		return models.Page[models.User]{}, fmt.Errorf("failed to search users: %w", err)
	}
	for i := range result.Data {
		result.Data[i] = s.d.withDefaultAvatar(result.Data[i])
	}
	return result, nil
}
