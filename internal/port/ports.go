// Package port declares the collaborators the services depend on and the
// conditions those collaborators report.
package port

import (
	"context"
	"errors"

	"users-service/internal/models"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrCodeMismatch        = errors.New("verification code mismatch")
	ErrAttemptsExceeded    = errors.New("verification attempts exceeded")
	ErrSessionMismatch     = errors.New("authentication session mismatch")
	ErrInvalidToken        = errors.New("invalid token")
	ErrSignatureMismatch   = errors.New("file signature mismatch")
	ErrDeliveryUnsupported = errors.New("delivery channel not supported")
)

// ConflictError reports which unique user field collided on Save.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return e.Field + " " + ErrAlreadyExists.Error()
}

func (e *ConflictError) Unwrap() error {
	return ErrAlreadyExists
}

// TokenCodec issues and decodes signed tokens. DecodeToken returns
// ErrInvalidToken for a bad signature, a missing claim or an expired token,
// without telling them apart.
type TokenCodec interface {
	CreateToken(user models.User, kind models.TokenKind) (string, error)
	DecodeToken(token string) (int64, error)
}

// CodeStore keeps one verification code per identifier with a bounded
// number of validation attempts.
type CodeStore interface {
	GenerateCode(ctx context.Context, identifier string) (string, error)
	ValidateCode(ctx context.Context, identifier, code string) error
	ClearCode(ctx context.Context, identifier string) error
}

// AuthSessionStore keeps operation-scoped authentication sessions.
type AuthSessionStore interface {
	GenerateSession(ctx context.Context, identifier string, op models.Operation) (models.AuthenticationSession, error)
	VerifySession(ctx context.Context, identifier string, op models.Operation, session string) error
	DeleteSession(ctx context.Context, identifier string, op models.Operation) error
	ClearAll(ctx context.Context, identifier string) error
}

// RefreshSessionStore tracks the live refresh tokens of each user.
type RefreshSessionStore interface {
	HasSession(ctx context.Context, userID int64, token string) (bool, error)
	Save(ctx context.Context, userID int64, token string) error
	Delete(ctx context.Context, userID int64, token string) error
	DeleteAll(ctx context.Context, userID int64) error
}

// SendRateLimiter bounds how often codes are sent to one identifier.
type SendRateLimiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

// UsersStore is durable user storage. Lookups return ErrNotFound for a
// missing user; Save returns ErrAlreadyExists on a username, email or phone
// collision.
type UsersStore interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByPhone(ctx context.Context, phone string) (models.User, error)
	GetByPhoneOrUsername(ctx context.Context, key string) (models.User, error)
	GetByEmailOrPhone(ctx context.Context, key string) (models.User, error)
	GetByIDs(ctx context.Context, ids []int64) ([]models.User, error)
	Search(ctx context.Context, query string, page, perPage int) (models.Page[models.User], error)
	Save(ctx context.Context, user models.User) (models.User, error)
}

// FilesStore persists trusted file records and generates default avatars.
type FilesStore interface {
	Save(ctx context.Context, file models.SavedFile) (models.SavedFile, error)
	GetDefault(user models.User) models.SavedFile
}

// Transactor runs fn inside one storage transaction. Stores called with the
// context passed to fn join that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// FileSignatureVerifier checks the signatures of an uploaded file.
type FileSignatureVerifier interface {
	Verify(file models.UploadingFile) error
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// NotificationSender delivers a verification code to an email or phone.
type NotificationSender interface {
	SendCode(ctx context.Context, identifier, code string) error
}

// UserEventPublisher fans user changes out to other services.
type UserEventPublisher interface {
	SendUserCreated(ctx context.Context, user models.User) error
	SendUserChanged(ctx context.Context, user models.User) error
}
