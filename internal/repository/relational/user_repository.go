package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"users-service/internal/models"
	"users-service/internal/port"
	"users-service/internal/util"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

const selectUser = `
	SELECT u.id, u.username, u.password, u.first_name, u.last_name, u.middle_name,
		u.email, u.phone, u.email_confirmed, u.phone_confirmed, u.status, u.last_seen,
		f.id, f.original_url, f.original_filename, f.converted_url, f.converted_filename
	FROM users u
	LEFT JOIN files f ON f.id = u.avatar_id`

// UserRepository is the SQL implementation of the users store.
type UserRepository struct {
	store *Store
	files *FileRepository
}

func NewUserRepository(store *Store, files *FileRepository) *UserRepository {
	return &UserRepository{store: store, files: files}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		user                     models.User
		middleName, email, phone sql.NullString
		status                   sql.NullString
		lastSeen                 int64
		fileID                   sql.NullInt64
		origURL, origName        sql.NullString
		convURL, convName        sql.NullString
	)
	err := row.Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.FirstName, &user.LastName, &middleName,
		&email, &phone, &user.EmailConfirmed, &user.PhoneConfirmed, &status, &lastSeen,
		&fileID, &origURL, &origName, &convURL, &convName,
	)
	if err != nil {
		return models.User{}, err
	}

	user.MiddleName = middleName.String
	user.Email = email.String
	user.Phone = phone.String
	user.Status = status.String
	user.LastSeen = time.Unix(lastSeen, 0).UTC()
	if fileID.Valid {
		user.Avatar = &models.SavedFile{
			ID:                fileID.Int64,
			OriginalURL:       origURL.String,
			OriginalFilename:  origName.String,
			ConvertedURL:      convURL.String,
			ConvertedFilename: convName.String,
		}
	}
	return user, nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (models.User, error) {
	user, err := scanUser(r.store.q(ctx).QueryRowContext(ctx, r.store.rebind(selectUser+" WHERE "+where), arg))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, port.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	users := []models.User{user}
	if err := r.loadPermissions(ctx, users); err != nil {
		return models.User{}, err
	}
	return users[0], nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (models.User, error) {
	return r.getOne(ctx, "u.id = ?", id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return r.getOne(ctx, "u.username = ?", username)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getOne(ctx, "u.email = ?", email)
}

func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (models.User, error) {
	return r.getOne(ctx, "u.phone = ?", phone)
}

// GetByPhoneOrUsername looks key up as a phone when it is phone-shaped and as
// a username otherwise. Usernames can never look like phones.
func (r *UserRepository) GetByPhoneOrUsername(ctx context.Context, key string) (models.User, error) {
	if util.IsPhone(key) {
		return r.GetByPhone(ctx, key)
	}
	return r.GetByUsername(ctx, key)
}

func (r *UserRepository) GetByEmailOrPhone(ctx context.Context, key string) (models.User, error) {
	if util.IsEmail(key) {
		return r.GetByEmail(ctx, key)
	}
	return r.GetByPhone(ctx, key)
}

// GetByIDs returns the users that exist among ids in the order of ids.
// Unknown and repeated ids are skipped.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	found, err := r.queryUsers(ctx, selectUser+" WHERE u.id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]models.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	ordered := make([]models.User, 0, len(found))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			ordered = append(ordered, u)
			delete(byID, id)
		}
	}
	return ordered, nil
}

// Search matches query case-insensitively against username, first and last
// name. page starts at 1; perPage is clamped to 1..100.
func (r *UserRepository) Search(ctx context.Context, query string, page, perPage int) (models.Page[models.User], error) {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage <= 0:
		perPage = defaultPerPage
	case perPage > maxPerPage:
		perPage = maxPerPage
	}

	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	where := ` WHERE LOWER(u.username) LIKE ? ESCAPE '\'
		OR LOWER(u.first_name) LIKE ? ESCAPE '\'
		OR LOWER(u.last_name) LIKE ? ESCAPE '\'`

	var total int
	err := r.store.q(ctx).QueryRowContext(ctx,
		r.store.rebind("SELECT COUNT(*) FROM users u"+where), pattern, pattern, pattern,
	).Scan(&total)
	if err != nil {
		return models.Page[models.User]{}, fmt.Errorf("failed to count users: %w", err)
	}

	users, err := r.queryUsers(ctx, selectUser+where+" ORDER BY u.id LIMIT ? OFFSET ?",
		pattern, pattern, pattern, perPage, (page-1)*perPage)
	if err != nil {
		return models.Page[models.User]{}, err
	}
	return models.NewPage(page, perPage, total, users), nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := r.store.q(ctx).QueryContext(ctx, r.store.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	_ = rows.Close()

	if err := r.loadPermissions(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) loadPermissions(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}

	index := make(map[int64]int, len(users))
	args := make([]any, len(users))
	for i, u := range users {
		index[u.ID] = i
		args[i] = u.ID
		users[i].Permissions = []models.Permission{}
	}

	rows, err := r.store.q(ctx).QueryContext(ctx, r.store.rebind(`
		SELECT user_id, code, name, category_code, category_name
		FROM user_permissions
		WHERE user_id IN (`+placeholders(len(users))+`)
		ORDER BY user_id, code`), args...)
	if err != nil {
		return fmt.Errorf("failed to load permissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID                     int64
			perm                       models.Permission
			categoryCode, categoryName sql.NullString
		)
		if err := rows.Scan(&userID, &perm.Code, &perm.Name, &categoryCode, &categoryName); err != nil {
			return fmt.Errorf("failed to scan permission: %w", err)
		}
		if categoryCode.Valid {
			perm.Category = &models.PermissionCategory{Code: categoryCode.String, Name: categoryName.String}
		}
		i := index[userID]
		users[i].Permissions = append(users[i].Permissions, perm)
	}
	return rows.Err()
}

// Save inserts a user with ID zero and updates any other. An avatar with ID
// zero is stored first. Username, email and phone stay unique across users,
// and a username may not equal another user's phone.
func (r *UserRepository) Save(ctx context.Context, user models.User) (models.User, error) {
	var saved models.User
	err := r.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := r.checkConflicts(ctx, user); err != nil {
			return err
		}

		if user.Avatar != nil && user.Avatar.ID == 0 {
			file, err := r.files.Save(ctx, *user.Avatar)
			if err != nil {
				return err
			}
			user = user.WithAvatar(&file)
		}

		var avatarID sql.NullInt64
		if user.Avatar != nil {
			avatarID = sql.NullInt64{Int64: user.Avatar.ID, Valid: true}
		}

		if user.ID == 0 {
			var id int64
			err := r.store.q(ctx).QueryRowContext(ctx, r.store.rebind(`
				INSERT INTO users (username, password, first_name, last_name, middle_name,
					email, phone, email_confirmed, phone_confirmed, status, last_seen, avatar_id)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				RETURNING id`),
				user.Username, user.PasswordHash, user.FirstName, user.LastName, nullString(user.MiddleName),
				nullString(user.Email), nullString(user.Phone), user.EmailConfirmed, user.PhoneConfirmed,
				nullString(user.Status), user.LastSeen.Unix(), avatarID,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("failed to insert user: %w", err)
			}
			user = user.WithID(id)
		} else {
			res, err := r.store.q(ctx).ExecContext(ctx, r.store.rebind(`
				UPDATE users SET username = ?, password = ?, first_name = ?, last_name = ?, middle_name = ?,
					email = ?, phone = ?, email_confirmed = ?, phone_confirmed = ?, status = ?,
					last_seen = ?, avatar_id = ?
				WHERE id = ?`),
				user.Username, user.PasswordHash, user.FirstName, user.LastName, nullString(user.MiddleName),
				nullString(user.Email), nullString(user.Phone), user.EmailConfirmed, user.PhoneConfirmed,
				nullString(user.Status), user.LastSeen.Unix(), avatarID, user.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to update user: %w", err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return fmt.Errorf("user %d: %w", user.ID, port.ErrNotFound)
			}
		}

		if err := r.replacePermissions(ctx, user); err != nil {
			return err
		}
		saved = user
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			util.Warn("Unique constraint violated on user save", zap.Int64("user_id", user.ID), zap.Error(err))
			return models.User{}, fmt.Errorf("failed to save user: %w", port.ErrAlreadyExists)
		}
		return models.User{}, err
	}
	return saved, nil
}

func (r *UserRepository) checkConflicts(ctx context.Context, user models.User) error {
	var username, email, phone sql.NullString
	err := r.store.q(ctx).QueryRowContext(ctx, r.store.rebind(`
		SELECT username, email, phone FROM users
		WHERE id <> ? AND (username = ? OR email = ? OR phone = ? OR phone = ? OR username = ?)
		LIMIT 1`),
		user.ID, user.Username, nullString(user.Email), nullString(user.Phone),
		user.Username, nullString(user.Phone),
	).Scan(&username, &email, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check user uniqueness: %w", err)
	}

	switch {
	case username.String == user.Username || phone.String == user.Username:
		return &port.ConflictError{Field: "username"}
	case user.Email != "" && email.String == user.Email:
		return &port.ConflictError{Field: "email"}
	default:
		return &port.ConflictError{Field: "phone"}
	}
}

func (r *UserRepository) replacePermissions(ctx context.Context, user models.User) error {
	q := r.store.q(ctx)
	if _, err := q.ExecContext(ctx, r.store.rebind("DELETE FROM user_permissions WHERE user_id = ?"), user.ID); err != nil {
		return fmt.Errorf("failed to clear permissions: %w", err)
	}
	for _, p := range user.Permissions {
		var code, name sql.NullString
		if p.Category != nil {
			code, name = nullString(p.Category.Code), nullString(p.Category.Name)
		}
		_, err := q.ExecContext(ctx, r.store.rebind(`
			INSERT INTO user_permissions (user_id, code, name, category_code, category_name)
			VALUES (?, ?, ?, ?, ?)`),
			user.ID, p.Code, p.Name, code, name)
		if err != nil {
			return fmt.Errorf("failed to save permission %s: %w", p.Code, err)
		}
	}
	return nil
}
