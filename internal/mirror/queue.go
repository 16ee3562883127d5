package mirror

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alterbase/cdn/internal/metrics"
	"github.com/alterbase/cdn/internal/models"
	"github.com/alterbase/cdn/internal/storage"
)

// statusStore is the slice of the file repository the queue needs to record
// terminal mirror states.
type statusStore interface {
	SetMirrorStatus(ctx context.Context, id string, status models.MirrorStatus, handle string) error
}

// task is one pending mirror upload.
type task struct {
	fileID     string
	storedName string
	sizeBytes  int64
}

// Queue runs mirror uploads on a bounded worker pool with exponential
// backoff. Enqueue never blocks the caller: the upload response does not
// wait for the remote copy.
type Queue struct {
	client      Client
	local       storage.Backend
	store       statusStore
	maxAttempts int
	baseDelay   time.Duration

	mu     sync.Mutex // guards closed and the send into tasks
	closed bool
	tasks  chan task
	wg     sync.WaitGroup
}

// NewQueue creates a mirror queue. maxAttempts bounds retries per file;
// baseDelay seeds the exponential backoff between attempts.
func NewQueue(client Client, local storage.Backend, store statusStore, maxAttempts int, baseDelay time.Duration) *Queue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Queue{
		client:      client,
		local:       local,
		store:       store,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		tasks:       make(chan task, 256),
	}
}

// Start launches the worker pool. Workers exit when the context is canceled
// or the queue is stopped.
func (q *Queue) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-q.tasks:
					if !ok {
						return
					}
					q.process(ctx, t)
				}
			}
		}()
	}
	slog.Info("mirror queue started", "workers", workers, "max_attempts", q.maxAttempts)
}

// Stop closes the queue and waits for in-flight tasks to finish. Safe to
// call more than once; Enqueue after Stop marks the file failed instead of
// sending on the closed channel.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	q.wg.Wait()
}

// Enqueue marks the file pending and schedules its mirror upload. If the
// queue is saturated or already stopped the file is marked failed for manual
// retry rather than blocking or panicking the upload path.
func (q *Queue) Enqueue(ctx context.Context, file *models.File) {
	if err := q.store.SetMirrorStatus(ctx, file.ID, models.MirrorPending, ""); err != nil {
		slog.Error("failed to mark mirror pending", "file_id", file.ID, "error", err)
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		slog.Error("mirror queue stopped, marking file failed", "file_id", file.ID)
		q.fail(ctx, file.ID)
		return
	}

	select {
	case q.tasks <- task{fileID: file.ID, storedName: file.StoredName, sizeBytes: file.SizeBytes}:
		q.mu.Unlock()
	default:
		q.mu.Unlock()
		slog.Error("mirror queue full, marking file failed", "file_id", file.ID)
		q.fail(ctx, file.ID)
	}
}

// process uploads one file with bounded retries and records the terminal state.
func (q *Queue) process(ctx context.Context, t task) {
	for attempt := 1; attempt <= q.maxAttempts; attempt++ {
		handle, err := q.putOnce(ctx, t)
		if err == nil {
			if err := q.store.SetMirrorStatus(ctx, t.fileID, models.MirrorComplete, handle); err != nil {
				slog.Error("failed to mark mirror complete", "file_id", t.fileID, "error", err)
				return
			}
			metrics.MirrorTasksTotal.WithLabelValues("complete").Inc()
			slog.Info("mirror complete", "file_id", t.fileID, "handle", handle, "attempts", attempt)
			return
		}

		slog.Warn("mirror attempt failed",
			"file_id", t.fileID,
			"attempt", attempt,
			"max_attempts", q.maxAttempts,
			"error", err,
		)

		if attempt < q.maxAttempts {
			metrics.MirrorTasksTotal.WithLabelValues("retried").Inc()
			delay := q.baseDelay << uint(attempt-1)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}

	q.fail(ctx, t.fileID)
}

// putOnce streams the local file to the remote target one time.
func (q *Queue) putOnce(ctx context.Context, t task) (string, error) {
	reader, err := q.local.Retrieve(ctx, t.storedName)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	return q.client.Put(ctx, t.storedName, reader, t.sizeBytes)
}

// fail records the terminal failed state. Failed files are never
// auto-deleted by cleanup; they need manual intervention.
func (q *Queue) fail(ctx context.Context, fileID string) {
	metrics.MirrorTasksTotal.WithLabelValues("failed").Inc()
	if err := q.store.SetMirrorStatus(ctx, fileID, models.MirrorFailed, ""); err != nil {
		slog.Error("failed to mark mirror failed", "file_id", fileID, "error", err)
	}
}
