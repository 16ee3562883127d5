// Package repository defines interfaces for data access operations.
// It abstracts the metadata store so SQLite and PostgreSQL backends can be
// swapped without changing service code.
package repository

import "errors"

// Common errors returned by repository operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateKey is returned when an insert violates a uniqueness
	// constraint. Upload retries with a fresh identifier on this error.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrMirrorStateTerminal is returned when an update would revert a
	// mirror status that already reached complete.
	ErrMirrorStateTerminal = errors.New("mirror status already complete")
)

// FileStats contains aggregate statistics about stored files.
type FileStats struct {
	TotalFiles   int64
	StorageUsed  int64
}
