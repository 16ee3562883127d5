package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alterbase/cdn/internal/models"
	"github.com/alterbase/cdn/internal/repository"
)

// FileRepository implements repository.FileRepository for SQLite.
type FileRepository struct {
	db *sql.DB
}

// NewFileRepository creates a new SQLite file repository.
func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `id, original_name, stored_name, content_type, size_bytes,
		created_at, permanent, mirror_status, mirror_handle`

// scanFile scans one row into a models.File, parsing the stored timestamp.
func scanFile(row interface{ Scan(...any) error }) (*models.File, error) {
	file := &models.File{}
	var createdAt string
	var permanent int
	var status string

	err := row.Scan(
		&file.ID,
		&file.OriginalName,
		&file.StoredName,
		&file.ContentType,
		&file.SizeBytes,
		&createdAt,
		&permanent,
		&status,
		&file.MirrorHandle,
	)
	if err != nil {
		return nil, err
	}

	file.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	file.Permanent = permanent != 0
	file.MirrorStatus = models.MirrorStatus(status)

	return file, nil
}

// Create inserts a new file record keyed by its slug.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (
			id, original_name, stored_name, content_type, size_bytes,
			created_at, permanent, mirror_status, mirror_handle
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	permanent := 0
	if file.Permanent {
		permanent = 1
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		file.ID,
		file.OriginalName,
		file.StoredName,
		file.ContentType,
		file.SizeBytes,
		file.CreatedAt.UTC().Format(time.RFC3339),
		permanent,
		string(file.MirrorStatus),
		file.MirrorHandle,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert file: %w", err)
	}

	return nil
}

// GetByID retrieves a file by its identifier.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = ?`

	file, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query file: %w", err)
	}

	return file, nil
}

// Exists reports whether an identifier is allocated.
func (r *FileRepository) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM files WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return true, nil
}

// List returns all files ordered newest first.
func (r *FileRepository) List(ctx context.Context) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []*models.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}

	return files, nil
}

// Delete removes a file record by identifier.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetMirrorStatus transitions a file's mirror state. The WHERE clause refuses
// to touch rows already marked complete, making that state terminal.
func (r *FileRepository) SetMirrorStatus(ctx context.Context, id string, status models.MirrorStatus, handle string) error {
	query := `
		UPDATE files
		SET mirror_status = ?, mirror_handle = ?
		WHERE id = ? AND mirror_status != ?
	`

	result, err := r.db.ExecContext(ctx, query, string(status), handle, id, string(models.MirrorComplete))
	if err != nil {
		return fmt.Errorf("failed to update mirror status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		if status == models.MirrorComplete {
			// Already complete; idempotent.
			return nil
		}
		return repository.ErrMirrorStateTerminal
	}

	return nil
}

// FindExpired returns non-permanent files created at or before the cutoff.
func (r *FileRepository) FindExpired(ctx context.Context, cutoff time.Time) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + `
		FROM files
		WHERE permanent = 0 AND created_at <= ?
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query expired files: %w", err)
	}
	defer rows.Close()

	var files []*models.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired file: %w", err)
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired files: %w", err)
	}

	return files, nil
}

// GetStats returns aggregate file count and storage usage.
func (r *FileRepository) GetStats(ctx context.Context) (*repository.FileStats, error) {
	stats := &repository.FileStats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM files
	`).Scan(&stats.TotalFiles, &stats.StorageUsed)
	if err != nil {
		return nil, fmt.Errorf("failed to query file stats: %w", err)
	}

	return stats, nil
}
