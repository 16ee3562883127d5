package repository

import (
	"context"
	"time"

	"github.com/alterbase/cdn/internal/models"
)

// FileRepository defines the interface for file metadata operations.
// All methods accept a context for cancellation and timeout support.
type FileRepository interface {
	// Create inserts a new file record. The id is chosen by the caller;
	// returns ErrDuplicateKey if it is already allocated, so the unique
	// constraint closes the identifier-generation race.
	Create(ctx context.Context, file *models.File) error

	// GetByID retrieves a file by its identifier.
	// Returns ErrNotFound if the file doesn't exist.
	GetByID(ctx context.Context, id string) (*models.File, error)

	// Exists reports whether an identifier is allocated, including rows
	// whose files are pending deletion. Identifiers are never reused.
	Exists(ctx context.Context, id string) (bool, error)

	// List returns all files ordered newest first.
	List(ctx context.Context) ([]*models.File, error)

	// Delete removes a file record by identifier.
	// Returns ErrNotFound if the file doesn't exist.
	Delete(ctx context.Context, id string) error

	// SetMirrorStatus transitions a file's mirror state and records the
	// remote handle. Complete is terminal: attempts to move a complete row
	// to any other state return ErrMirrorStateTerminal.
	SetMirrorStatus(ctx context.Context, id string, status models.MirrorStatus, handle string) error

	// FindExpired returns non-permanent files created at or before the
	// cutoff, regardless of mirror status. The cleanup scheduler decides
	// per file whether deletion is permitted.
	FindExpired(ctx context.Context, cutoff time.Time) ([]*models.File, error)

	// GetStats returns aggregate file count and storage usage.
	GetStats(ctx context.Context) (*FileStats, error)
}
