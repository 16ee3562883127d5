// Package filesystem implements the storage.Backend interface for local
// filesystem storage.
package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alterbase/cdn/internal/storage"
)

// FilesystemStorage implements storage.Backend for local filesystem storage.
type FilesystemStorage struct {
	baseDir    string // Base directory for all storage operations
	absBaseDir string // Absolute path of baseDir for path validation
}

// NewFilesystemStorage creates a new FilesystemStorage with the given base directory.
func NewFilesystemStorage(baseDir string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, storage.NewStorageError("NewFilesystemStorage", baseDir, err)
	}

	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, storage.NewStorageError("NewFilesystemStorage", baseDir, err)
	}

	return &FilesystemStorage{
		baseDir:    baseDir,
		absBaseDir: absBaseDir,
	}, nil
}

// validatePath validates that the filename doesn't escape the base directory.
// Returns the safe full path or an error if path traversal is detected.
func (fs *FilesystemStorage) validatePath(filename string) (string, error) {
	cleanFilename := filepath.Clean(filename)

	if filepath.IsAbs(cleanFilename) {
		return "", fmt.Errorf("absolute paths not allowed: %s", filename)
	}

	if strings.HasPrefix(cleanFilename, "..") || strings.Contains(cleanFilename, string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal not allowed: %s", filename)
	}

	fullPath := filepath.Join(fs.baseDir, cleanFilename)

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, fs.absBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path escape attempt: %s", filename)
	}

	return fullPath, nil
}

// Store writes data from the reader to storage with the given filename.
// Uses atomic write pattern (temp file then rename) so a crash mid-write
// never leaves a partially written file under the final name.
func (fs *FilesystemStorage) Store(ctx context.Context, filename string, reader io.Reader) (int64, error) {
	filePath, err := fs.validatePath(filename)
	if err != nil {
		return 0, storage.NewStorageError("Store", filename, err)
	}
	tempPath := filePath + ".tmp"

	tempFile, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return 0, storage.NewStorageError("Store", filename, err)
	}

	var succeeded bool
	defer func() {
		tempFile.Close()
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	written, err := io.Copy(tempFile, reader)
	if err != nil {
		return 0, storage.NewStorageError("Store", filename, err)
	}

	if err := tempFile.Close(); err != nil {
		return 0, storage.NewStorageError("Store", filename, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		return 0, storage.NewStorageError("Store", filename, err)
	}

	succeeded = true
	return written, nil
}

// Retrieve returns a reader for the stored file.
func (fs *FilesystemStorage) Retrieve(ctx context.Context, filename string) (io.ReadCloser, error) {
	filePath, err := fs.validatePath(filename)
	if err != nil {
		return nil, storage.NewStorageError("Retrieve", filename, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, storage.NewStorageError("Retrieve", filename, err)
	}

	return file, nil
}

// Delete removes a file from storage. A missing file is not an error.
func (fs *FilesystemStorage) Delete(ctx context.Context, filename string) error {
	filePath, err := fs.validatePath(filename)
	if err != nil {
		return storage.NewStorageError("Delete", filename, err)
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return storage.NewStorageError("Delete", filename, err)
	}

	return nil
}

// Exists checks if a file exists in storage.
func (fs *FilesystemStorage) Exists(ctx context.Context, filename string) (bool, error) {
	filePath, err := fs.validatePath(filename)
	if err != nil {
		return false, storage.NewStorageError("Exists", filename, err)
	}

	_, err = os.Stat(filePath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, storage.NewStorageError("Exists", filename, err)
	}

	return true, nil
}

// GetSize returns the size of a stored file in bytes.
func (fs *FilesystemStorage) GetSize(ctx context.Context, filename string) (int64, error) {
	filePath, err := fs.validatePath(filename)
	if err != nil {
		return 0, storage.NewStorageError("GetSize", filename, err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return 0, storage.NewStorageError("GetSize", filename, err)
	}

	return info.Size(), nil
}
