package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"users-service/internal/models"
	"users-service/internal/port"
)

// FileRepository stores trusted file records and builds default avatars.
type FileRepository struct {
	store            *Store
	avatarServiceURL string
}

func NewFileRepository(store *Store, avatarServiceURL string) *FileRepository {
	return &FileRepository{store: store, avatarServiceURL: avatarServiceURL}
}

func (r *FileRepository) Save(ctx context.Context, file models.SavedFile) (models.SavedFile, error) {
	var id int64
	err := r.store.q(ctx).QueryRowContext(ctx, r.store.rebind(`
		INSERT INTO files (original_url, original_filename, converted_url, converted_filename)
		VALUES (?, ?, ?, ?)
		RETURNING id`),
		file.OriginalURL, file.OriginalFilename,
		nullString(file.ConvertedURL), nullString(file.ConvertedFilename),
	).Scan(&id)
	if err != nil {
		return models.SavedFile{}, fmt.Errorf("failed to save file: %w", err)
	}
	file.ID = id
	return file, nil
}

func (r *FileRepository) GetByID(ctx context.Context, id int64) (models.SavedFile, error) {
	var (
		file              models.SavedFile
		convURL, convName sql.NullString
	)
	err := r.store.q(ctx).QueryRowContext(ctx, r.store.rebind(`
		SELECT id, original_url, original_filename, converted_url, converted_filename
		FROM files WHERE id = ?`), id,
	).Scan(&file.ID, &file.OriginalURL, &file.OriginalFilename, &convURL, &convName)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SavedFile{}, fmt.Errorf("file %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		return models.SavedFile{}, fmt.Errorf("failed to get file: %w", err)
	}
	file.ConvertedURL = convURL.String
	file.ConvertedFilename = convName.String
	return file, nil
}

// GetDefault returns the generated placeholder avatar for user. It is never
// persisted and always has ID zero.
func (r *FileRepository) GetDefault(user models.User) models.SavedFile {
	return models.SavedFile{
		OriginalURL:      r.avatarServiceURL + "?squares=8&size=128&word=" + url.QueryEscape(user.Username),
		OriginalFilename: user.Username + ".svg",
	}
}
