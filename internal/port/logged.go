package port

import (
	"context"

	"go.uber.org/zap"

	"users-service/internal/models"
)

type loggedCodeStore struct {
	next   CodeStore
	logger *zap.Logger
}

// LogCodeStore wraps s so that every call is logged through Observe.
func LogCodeStore(s CodeStore, logger *zap.Logger) CodeStore {
	return &loggedCodeStore{next: s, logger: logger}
}

func (l *loggedCodeStore) GenerateCode(ctx context.Context, identifier string) (string, error) {
	return Observe(ctx, l.logger, "code_store", "generate_code", func(ctx context.Context) (string, error) {
		return l.next.GenerateCode(ctx, identifier)
	})
}

func (l *loggedCodeStore) ValidateCode(ctx context.Context, identifier, code string) error {
	return observeErr(ctx, l.logger, "code_store", "validate_code", func(ctx context.Context) error {
		return l.next.ValidateCode(ctx, identifier, code)
	})
}

func (l *loggedCodeStore) ClearCode(ctx context.Context, identifier string) error {
	return observeErr(ctx, l.logger, "code_store", "clear_code", func(ctx context.Context) error {
		return l.next.ClearCode(ctx, identifier)
	})
}

type loggedAuthSessionStore struct {
	next   AuthSessionStore
	logger *zap.Logger
}

func LogAuthSessionStore(s AuthSessionStore, logger *zap.Logger) AuthSessionStore {
	return &loggedAuthSessionStore{next: s, logger: logger}
}

func (l *loggedAuthSessionStore) GenerateSession(ctx context.Context, identifier string, op models.Operation) (models.AuthenticationSession, error) {
	return Observe(ctx, l.logger, "auth_session_store", "generate_session", func(ctx context.Context) (models.AuthenticationSession, error) {
		return l.next.GenerateSession(ctx, identifier, op)
	})
}

func (l *loggedAuthSessionStore) VerifySession(ctx context.Context, identifier string, op models.Operation, session string) error {
	return observeErr(ctx, l.logger, "auth_session_store", "verify_session", func(ctx context.Context) error {
		return l.next.VerifySession(ctx, identifier, op, session)
	})
}

func (l *loggedAuthSessionStore) DeleteSession(ctx context.Context, identifier string, op models.Operation) error {
	return observeErr(ctx, l.logger, "auth_session_store", "delete_session", func(ctx context.Context) error {
		return l.next.DeleteSession(ctx, identifier, op)
	})
}

func (l *loggedAuthSessionStore) ClearAll(ctx context.Context, identifier string) error {
	return observeErr(ctx, l.logger, "auth_session_store", "clear_all", func(ctx context.Context) error {
		return l.next.ClearAll(ctx, identifier)
	})
}

type loggedRefreshSessionStore struct {
	next   RefreshSessionStore
	logger *zap.Logger
}

func LogRefreshSessionStore(s RefreshSessionStore, logger *zap.Logger) RefreshSessionStore {
	return &loggedRefreshSessionStore{next: s, logger: logger}
}

func (l *loggedRefreshSessionStore) HasSession(ctx context.Context, userID int64, token string) (bool, error) {
	return Observe(ctx, l.logger, "refresh_session_store", "has_session", func(ctx context.Context) (bool, error) {
		return l.next.HasSession(ctx, userID, token)
	})
}

func (l *loggedRefreshSessionStore) Save(ctx context.Context, userID int64, token string) error {
	return observeErr(ctx, l.logger, "refresh_session_store", "save", func(ctx context.Context) error {
		return l.next.Save(ctx, userID, token)
	})
}

func (l *loggedRefreshSessionStore) Delete(ctx context.Context, userID int64, token string) error {
	return observeErr(ctx, l.logger, "refresh_session_store", "delete", func(ctx context.Context) error {
		return l.next.Delete(ctx, userID, token)
	})
}

func (l *loggedRefreshSessionStore) DeleteAll(ctx context.Context, userID int64) error {
	return observeErr(ctx, l.logger, "refresh_session_store", "delete_all", func(ctx context.Context) error {
		return l.next.DeleteAll(ctx, userID)
	})
}

type loggedSendRateLimiter struct {
	next   SendRateLimiter
	logger *zap.Logger
}

func LogSendRateLimiter(s SendRateLimiter, logger *zap.Logger) SendRateLimiter {
	return &loggedSendRateLimiter{next: s, logger: logger}
}

func (l *loggedSendRateLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	return Observe(ctx, l.logger, "send_rate_limiter", "allow", func(ctx context.Context) (bool, error) {
		return l.next.Allow(ctx, identifier)
	})
}

type loggedUsersStore struct {
	next   UsersStore
	logger *zap.Logger
}

func LogUsersStore(s UsersStore, logger *zap.Logger) UsersStore {
	return &loggedUsersStore{next: s, logger: logger}
}

func (l *loggedUsersStore) user(ctx context.Context, op string, fn func(context.Context) (models.User, error)) (models.User, error) {
	return Observe(ctx, l.logger, "users_store", op, fn)
}

func (l *loggedUsersStore) GetByID(ctx context.Context, id int64) (models.User, error) {
	return l.user(ctx, "get_by_id", func(ctx context.Context) (models.User, error) { return l.next.GetByID(ctx, id) })
}

func (l *loggedUsersStore) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return l.user(ctx, "get_by_username", func(ctx context.Context) (models.User, error) { return l.next.GetByUsername(ctx, username) })
}

func (l *loggedUsersStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return l.user(ctx, "get_by_email", func(ctx context.Context) (models.User, error) { return l.next.GetByEmail(ctx, email) })
}

func (l *loggedUsersStore) GetByPhone(ctx context.Context, phone string) (models.User, error) {
	return l.user(ctx, "get_by_phone", func(ctx context.Context) (models.User, error) { return l.next.GetByPhone(ctx, phone) })
}

func (l *loggedUsersStore) GetByPhoneOrUsername(ctx context.Context, key string) (models.User, error) {
	return l.user(ctx, "get_by_phone_or_username", func(ctx context.Context) (models.User, error) { return l.next.GetByPhoneOrUsername(ctx, key) })
}

func (l *loggedUsersStore) GetByEmailOrPhone(ctx context.Context, key string) (models.User, error) {
	return l.user(ctx, "get_by_email_or_phone", func(ctx context.Context) (models.User, error) { return l.next.GetByEmailOrPhone(ctx, key) })
}

func (l *loggedUsersStore) GetByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	return Observe(ctx, l.logger, "users_store", "get_by_ids", func(ctx context.Context) ([]models.User, error) {
		return l.next.GetByIDs(ctx, ids)
	})
}

func (l *loggedUsersStore) Search(ctx context.Context, query string, page, perPage int) (models.Page[models.User], error) {
	return Observe(ctx, l.logger, "users_store", "search", func(ctx context.Context) (models.Page[models.User], error) {
		return l.next.Search(ctx, query, page, perPage)
	})
}

func (l *loggedUsersStore) Save(ctx context.Context, user models.User) (models.User, error) {
	return l.user(ctx, "save", func(ctx context.Context) (models.User, error) { return l.next.Save(ctx, user) })
}

type loggedFilesStore struct {
	next   FilesStore
	logger *zap.Logger
}

func LogFilesStore(s FilesStore, logger *zap.Logger) FilesStore {
	return &loggedFilesStore{next: s, logger: logger}
}

func (l *loggedFilesStore) Save(ctx context.Context, file models.SavedFile) (models.SavedFile, error) {
	return Observe(ctx, l.logger, "files_store", "save", func(ctx context.Context) (models.SavedFile, error) {
		return l.next.Save(ctx, file)
	})
}

// GetDefault is pure and is not logged.
func (l *loggedFilesStore) GetDefault(user models.User) models.SavedFile {
	return l.next.GetDefault(user)
}

type loggedNotificationSender struct {
	next   NotificationSender
	logger *zap.Logger
}

func LogNotificationSender(s NotificationSender, logger *zap.Logger) NotificationSender {
	return &loggedNotificationSender{next: s, logger: logger}
}

func (l *loggedNotificationSender) SendCode(ctx context.Context, identifier, code string) error {
	return observeErr(ctx, l.logger, "notification_sender", "send_code", func(ctx context.Context) error {
		return l.next.SendCode(ctx, identifier, code)
	})
}

type loggedUserEventPublisher struct {
	next   UserEventPublisher
	logger *zap.Logger
}

func LogUserEventPublisher(p UserEventPublisher, logger *zap.Logger) UserEventPublisher {
	return &loggedUserEventPublisher{next: p, logger: logger}
}

func (l *loggedUserEventPublisher) SendUserCreated(ctx context.Context, user models.User) error {
	return observeErr(ctx, l.logger, "user_event_publisher", "user_created", func(ctx context.Context) error {
		return l.next.SendUserCreated(ctx, user)
	})
}

func (l *loggedUserEventPublisher) SendUserChanged(ctx context.Context, user models.User) error {
	return observeErr(ctx, l.logger, "user_event_publisher", "user_changed", func(ctx context.Context) error {
		return l.next.SendUserChanged(ctx, user)
	})
}
