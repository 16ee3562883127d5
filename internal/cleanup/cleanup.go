// Package cleanup reclaims storage from expired files. A file is never
// deleted locally before its remote mirror copy is confirmed.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alterbase/cdn/internal/metrics"
	"github.com/alterbase/cdn/internal/mirror"
	"github.com/alterbase/cdn/internal/models"
	"github.com/alterbase/cdn/internal/repository"
	"github.com/alterbase/cdn/internal/storage"
)

// Result summarizes one cleanup run.
type Result struct {
	Evaluated int // expired candidates examined
	Skipped   int // deferred because the mirror copy is not confirmed
	Deleted   int // fully removed (remote, local file, metadata row)
	Errors    int // per-item failures, isolated from the rest of the batch
}

// Scheduler periodically deletes expired, non-permanent files whose mirror
// state permits deletion.
type Scheduler struct {
	repo          repository.FileRepository
	store         storage.Backend
	remote        mirror.Client // nil when mirroring is disabled
	counters      *metrics.Counters
	retention     time.Duration
	mirrorEnabled bool

	running sync.Mutex // held for the duration of a run; ticks that find it held are skipped
	now     func() time.Time
}

// NewScheduler creates a cleanup scheduler. remote may be nil when mirroring
// is disabled; mirror status is then ignored when selecting files.
func NewScheduler(
	repo repository.FileRepository,
	store storage.Backend,
	remote mirror.Client,
	counters *metrics.Counters,
	retention time.Duration,
	mirrorEnabled bool,
) *Scheduler {
	return &Scheduler{
		repo:          repo,
		store:         store,
		remote:        remote,
		counters:      counters,
		retention:     retention,
		mirrorEnabled: mirrorEnabled,
		now:           time.Now,
	}
}

// Start runs cleanup on the given interval until the context is canceled.
// Runs never overlap: a tick that fires while a run is still executing is
// skipped. The first run happens immediately.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("cleanup scheduler started",
		"interval", interval,
		"retention", s.retention,
		"mirror_enabled", s.mirrorEnabled,
	)

	s.runGuarded(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup scheduler shutting down")
			return
		case <-ticker.C:
			s.runGuarded(ctx)
		}
	}
}

// runGuarded executes RunOnce unless a previous run is still in flight.
func (s *Scheduler) runGuarded(ctx context.Context) {
	if !s.running.TryLock() {
		slog.Warn("cleanup run still in progress, skipping tick")
		return
	}
	defer s.running.Unlock()

	start := time.Now()
	result, err := s.runOnce(ctx)
	duration := time.Since(start)
	metrics.CleanupDuration.Observe(duration.Seconds())

	if err != nil {
		slog.Error("cleanup run failed", "error", err, "duration", duration)
		return
	}

	logFn := slog.Debug
	if result.Deleted > 0 || result.Errors > 0 {
		logFn = slog.Info
	}
	logFn("cleanup run completed",
		"evaluated", result.Evaluated,
		"skipped", result.Skipped,
		"deleted", result.Deleted,
		"errors", result.Errors,
		"duration", duration,
	)
}

// RunOnce performs a single cleanup pass. Exposed for operator tooling and
// tests; concurrent callers are serialized with the periodic runs.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	s.running.Lock()
	defer s.running.Unlock()
	return s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) (Result, error) {
	var result Result

	cutoff := s.now().Add(-s.retention)
	candidates, err := s.repo.FindExpired(ctx, cutoff)
	if err != nil {
		return result, err
	}

	for _, file := range candidates {
		// A shutdown lets the current file finish, never a half-deleted
		// file/row pair; the check sits between items only.
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		result.Evaluated++

		if s.mirrorEnabled && file.MirrorStatus != models.MirrorComplete {
			result.Skipped++
			metrics.CleanupSkippedTotal.Inc()
			slog.Debug("cleanup deferred, mirror not confirmed",
				"file_id", file.ID,
				"mirror_status", file.MirrorStatus,
			)
			continue
		}

		if err := s.deleteFile(ctx, file); err != nil {
			// One bad file does not block the rest of the batch.
			result.Errors++
			slog.Error("cleanup failed for file", "file_id", file.ID, "error", err)
			continue
		}

		result.Deleted++
		s.counters.RecordDeletion(file.SizeBytes)
		metrics.DeletedTotal.Inc()
	}

	return result, nil
}

// deleteFile removes one file: remote copy first, then the local file, then
// the metadata row. The local delete is idempotent, so a run that removed
// the file but failed on the row converges on retry instead of leaving a
// dangling row behind.
func (s *Scheduler) deleteFile(ctx context.Context, file *models.File) error {
	if s.remote != nil && file.MirrorStatus == models.MirrorComplete {
		if err := s.remote.Delete(ctx, file.MirrorHandle); err != nil {
			return err
		}
	}

	if err := s.store.Delete(ctx, file.StoredName); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, file.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	slog.Info("expired file deleted",
		"file_id", file.ID,
		"stored_name", file.StoredName,
		"size_bytes", file.SizeBytes,
	)
	return nil
}
