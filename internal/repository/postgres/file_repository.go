package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alterbase/cdn/internal/models"
	"github.com/alterbase/cdn/internal/repository"
)

// FileRepository implements repository.FileRepository for PostgreSQL.
type FileRepository struct {
	pool *Pool
}

// NewFileRepository creates a new PostgreSQL file repository.
func NewFileRepository(pool *Pool) *FileRepository {
	return &FileRepository{pool: pool}
}

const fileColumns = `id, original_name, stored_name, content_type, size_bytes,
		created_at, permanent, mirror_status, mirror_handle`

// scanFile scans one row into a models.File.
func scanFile(row pgx.Row) (*models.File, error) {
	file := &models.File{}
	var status string

	err := row.Scan(
		&file.ID,
		&file.OriginalName,
		&file.StoredName,
		&file.ContentType,
		&file.SizeBytes,
		&file.CreatedAt,
		&file.Permanent,
		&status,
		&file.MirrorHandle,
	)
	if err != nil {
		return nil, err
	}
	file.MirrorStatus = models.MirrorStatus(status)

	return file, nil
}

// Create inserts a new file record keyed by its slug.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (
			id, original_name, stored_name, content_type, size_bytes,
			created_at, permanent, mirror_status, mirror_handle
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(
		ctx,
		query,
		file.ID,
		file.OriginalName,
		file.StoredName,
		file.ContentType,
		file.SizeBytes,
		file.CreatedAt.UTC(),
		file.Permanent,
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
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	file, err := scanFile(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query file: %w", err)
	}

	return file, nil
}

// Exists reports whether an identifier is allocated.
func (r *FileRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM files WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return exists, nil
}

// List returns all files ordered newest first.
func (r *FileRepository) List(ctx context.Context) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files ORDER BY created_at DESC, id`

	rows, err := r.pool.Query(ctx, query)
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
	tag, err := r.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetMirrorStatus transitions a file's mirror state. Complete is terminal.
func (r *FileRepository) SetMirrorStatus(ctx context.Context, id string, status models.MirrorStatus, handle string) error {
	query := `
		UPDATE files
		SET mirror_status = $1, mirror_handle = $2
		WHERE id = $3 AND mirror_status != $4
	`

	tag, err := r.pool.Exec(ctx, query, string(status), handle, id, string(models.MirrorComplete))
	if err != nil {
		return fmt.Errorf("failed to update mirror status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		exists, err := r.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		if status == models.MirrorComplete {
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
		WHERE permanent = FALSE AND created_at <= $1
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, cutoff.UTC())
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
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM files
	`).Scan(&stats.TotalFiles, &stats.StorageUsed)
	if err != nil {
		return nil, fmt.Errorf("failed to query file stats: %w", err)
	}

	return stats, nil
}
