// Package storage provides abstraction for file storage operations,
// so the local backend can be swapped without changing service code.
package storage

import (
	"context"
	"io"
)

// Backend defines the interface for local file storage operations.
type Backend interface {
	// Store writes data from the reader to storage under the given
	// filename and returns the number of bytes written.
	Store(ctx context.Context, filename string, reader io.Reader) (int64, error)

	// Retrieve returns a reader for the stored file.
	// The caller is responsible for closing the returned ReadCloser.
	Retrieve(ctx context.Context, filename string) (io.ReadCloser, error)

	// Delete removes a file from storage. Deleting a file that does not
	// exist is not an error; cleanup retries must be idempotent.
	Delete(ctx context.Context, filename string) error

	// Exists checks if a file exists in storage.
	Exists(ctx context.Context, filename string) (bool, error)

	// GetSize returns the size of a stored file in bytes.
	GetSize(ctx context.Context, filename string) (int64, error)
}

// StorageError represents errors from storage operations with additional context.
type StorageError struct {
	Op   string // Operation that failed (e.g., "Store", "Retrieve", "Delete")
	Path string // Path or filename involved
	Err  error  // Underlying error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return e.Op + " " + e.Path + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError with the given details.
func NewStorageError(op, path string, err error) *StorageError {
	return &StorageError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}
