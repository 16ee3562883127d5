// Package service implements the file lifecycle operations behind the HTTP
// boundary: validated uploads, identifier allocation, and mirror scheduling.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/alterbase/cdn/internal/metrics"
	"github.com/alterbase/cdn/internal/mirror"
	"github.com/alterbase/cdn/internal/models"
	"github.com/alterbase/cdn/internal/repository"
	"github.com/alterbase/cdn/internal/slug"
	"github.com/alterbase/cdn/internal/storage"
)

// Errors surfaced to the upload caller.
var (
	// ErrPayloadTooLarge is returned when the stream exceeds the size cap.
	// Enforced against bytes actually read, not the declared header.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrSizeMismatch is returned when the stream ends short of or beyond
	// its declared size.
	ErrSizeMismatch = errors.New("uploaded size does not match declared size")

	// ErrStorageWrite is returned when persisting the bytes fails.
	ErrStorageWrite = errors.New("storage write failed")
)

// createRetries bounds re-draws when a freshly generated identifier loses
// the insert race to a concurrent upload.
const createRetries = 3

// UploadRequest carries one incoming file.
type UploadRequest struct {
	Reader       io.Reader
	OriginalName string
	ContentType  string
	DeclaredSize int64
	Permanent    bool
}

// UploadService validates and persists incoming files.
type UploadService struct {
	repo     repository.FileRepository
	store    storage.Backend
	slugs    *slug.Generator
	mirror   *mirror.Queue // nil when mirroring is disabled
	counters *metrics.Counters

	maxFileSize int64
	slugLength  int

	now func() time.Time // injectable clock for tests
}

// NewUploadService wires the upload path. mirrorQueue may be nil when
// mirroring is disabled; files then stay in mirror status none.
func NewUploadService(
	repo repository.FileRepository,
	store storage.Backend,
	mirrorQueue *mirror.Queue,
	counters *metrics.Counters,
	maxFileSize int64,
	slugLength int,
) *UploadService {
	return &UploadService{
		repo:        repo,
		store:       store,
		slugs:       slug.NewGenerator(repo.Exists),
		mirror:      mirrorQueue,
		counters:    counters,
		maxFileSize: maxFileSize,
		slugLength:  slugLength,
		now:         time.Now,
	}
}

// Upload persists one file: allocates an identifier, inserts the metadata
// row, streams the bytes to storage, and schedules the mirror task. The
// caller gets success once the local write completes; mirroring is
// asynchronous.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (*models.File, error) {
	if req.DeclaredSize > s.maxFileSize {
		metrics.UploadsTotal.WithLabelValues("failure").Inc()
		return nil, ErrPayloadTooLarge
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	file := &models.File{
		OriginalName: req.OriginalName,
		StoredName:   uuid.New().String() + fileExt(req.OriginalName),
		ContentType:  contentType,
		SizeBytes:    req.DeclaredSize,
		CreatedAt:    s.now().UTC(),
		Permanent:    req.Permanent,
		MirrorStatus: models.MirrorNone,
	}

	// Metadata row first: a crash after a partial write leaves a row that a
	// reconciliation pass can discover, never an anonymous file.
	if err := s.createWithFreshID(ctx, file); err != nil {
		metrics.UploadsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}

	written, err := s.store.Store(ctx, file.StoredName, newCappedReader(req.Reader, s.maxFileSize))
	if err != nil {
		s.rollback(ctx, file)
		metrics.UploadsTotal.WithLabelValues("failure").Inc()
		if errors.Is(err, ErrPayloadTooLarge) {
			return nil, ErrPayloadTooLarge
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	if req.DeclaredSize > 0 && written != req.DeclaredSize {
		s.removeStored(ctx, file)
		s.rollback(ctx, file)
		metrics.UploadsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("%w: declared %d, read %d", ErrSizeMismatch, req.DeclaredSize, written)
	}
	file.SizeBytes = written

	// Counters reflect the local write; a later mirror failure does not
	// undo them.
	s.counters.RecordUpload(written)
	metrics.UploadsTotal.WithLabelValues("success").Inc()
	metrics.UploadSizeBytes.Observe(float64(written))

	slog.Info("upload stored",
		"file_id", file.ID,
		"stored_name", file.StoredName,
		"size_bytes", written,
		"content_type", file.ContentType,
		"permanent", file.Permanent,
	)

	if s.mirror != nil {
		s.mirror.Enqueue(ctx, file)
		file.MirrorStatus = models.MirrorPending
	}

	return file, nil
}

// Get retrieves a file's metadata by identifier.
func (s *UploadService) Get(ctx context.Context, id string) (*models.File, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all stored files, newest first.
func (s *UploadService) List(ctx context.Context) ([]*models.File, error) {
	return s.repo.List(ctx)
}

// createWithFreshID allocates an identifier and inserts the row, re-drawing
// when a concurrent upload wins the same identifier. The unique constraint
// makes the read-check-insert race harmless.
func (s *UploadService) createWithFreshID(ctx context.Context, file *models.File) error {
	for attempt := 0; attempt < createRetries; attempt++ {
		id, err := s.slugs.Generate(ctx, s.slugLength)
		if err != nil {
			return err
		}

		file.ID = id
		err = s.repo.Create(ctx, file)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return err
		}

		slog.Warn("identifier insert race, redrawing", "file_id", id, "attempt", attempt+1)
	}

	return slug.ErrCapacityExhausted
}

// rollback removes the metadata row after a failed write so no row points at
// a missing file.
func (s *UploadService) rollback(ctx context.Context, file *models.File) {
	if err := s.repo.Delete(ctx, file.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		slog.Error("failed to roll back file row", "file_id", file.ID, "error", err)
	}
}

// removeStored deletes the stored bytes after a post-write validation failure.
func (s *UploadService) removeStored(ctx context.Context, file *models.File) {
	if err := s.store.Delete(ctx, file.StoredName); err != nil {
		slog.Error("failed to remove stored file", "stored_name", file.StoredName, "error", err)
	}
}

// fileExt returns a sanitized extension for the stored filename.
func fileExt(name string) string {
	ext := filepath.Ext(filepath.Base(name))
	if ext == "" || len(ext) > 16 {
		return ".bin"
	}
	return ext
}

// cappedReader fails the copy once more than max bytes have been read, so
// oversized streams are rejected on real byte count rather than truncated.
type cappedReader struct {
	r         io.Reader
	remaining int64
}

func newCappedReader(r io.Reader, max int64) *cappedReader {
	return &cappedReader{r: r, remaining: max}
}

func (cr *cappedReader) Read(p []byte) (int, error) {
	if cr.remaining < 0 {
		return 0, ErrPayloadTooLarge
	}
	if int64(len(p)) > cr.remaining+1 {
		p = p[:cr.remaining+1]
	}
	n, err := cr.r.Read(p)
	cr.remaining -= int64(n)
	if cr.remaining < 0 {
		return 0, ErrPayloadTooLarge
	}
	return n, err
}
