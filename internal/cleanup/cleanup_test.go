package cleanup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alterbase/cdn/internal/metrics"
	"github.com/alterbase/cdn/internal/mirror"
	"github.com/alterbase/cdn/internal/models"
	"github.com/alterbase/cdn/internal/repository"
	"github.com/alterbase/cdn/internal/repository/sqlite"
	"github.com/alterbase/cdn/internal/storage/filesystem"
)

// fakeRemote records deletions against the remote mirror
type fakeRemote struct {
	mu      sync.Mutex
	deleted []string
	failOn  string // handle whose deletion fails
}

func (r *fakeRemote) Put(ctx context.Context, key string, reader io.Reader, size int64) (string, error) {
	return key, nil
}

func (r *fakeRemote) Delete(ctx context.Context, handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != "" && handle == r.failOn {
		return errors.New("remote delete failed")
	}
	r.deleted = append(r.deleted, handle)
	return nil
}

type fixture struct {
	repo     *sqlite.FileRepository
	store    *filesystem.FilesystemStorage
	remote   *fakeRemote
	counters *metrics.Counters
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.Initialize(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := filesystem.NewFilesystemStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	return &fixture{
		repo:     sqlite.NewFileRepository(db),
		store:    store,
		remote:   &fakeRemote{},
		counters: metrics.NewCounters(),
	}
}

func (f *fixture) scheduler(t *testing.T, mirrorEnabled bool) *Scheduler {
	t.Helper()
	var remote mirror.Client
	if mirrorEnabled {
		remote = f.remote
	}
	return NewScheduler(f.repo, f.store, remote, f.counters, time.Hour, mirrorEnabled)
}

// addFile creates a metadata row and its stored bytes
func (f *fixture) addFile(t *testing.T, id string, age time.Duration, permanent bool, status models.MirrorStatus) *models.File {
	t.Helper()
	ctx := context.Background()

	content := []byte("payload-" + id)
	file := &models.File{
		ID:           id,
		OriginalName: id + ".txt",
		StoredName:   id + ".txt",
		ContentType:  "text/plain",
		SizeBytes:    int64(len(content)),
		CreatedAt:    time.Now().UTC().Add(-age),
		Permanent:    permanent,
		MirrorStatus: status,
	}
	if status == models.MirrorComplete {
		file.MirrorHandle = "mirror/" + file.StoredName
	}

	if err := f.repo.Create(ctx, file); err != nil {
		t.Fatalf("Create(%s) failed: %v", id, err)
	}
	if _, err := f.store.Store(ctx, file.StoredName, bytes.NewReader(content)); err != nil {
		t.Fatalf("Store(%s) failed: %v", id, err)
	}
	return file
}

func TestRunOnceNoCandidates(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(t, false)

	result, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if result != (Result{}) {
		t.Errorf("result = %+v, want zero values", result)
	}
	if snap := f.counters.Snapshot(); snap.Deleted != 0 {
		t.Errorf("Deleted counter = %d, want 0", snap.Deleted)
	}
}

func TestRunOnceDeletesExpired(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(t, false)
	ctx := context.Background()

	f.addFile(t, "old", 2*time.Hour, false, models.MirrorNone)
	f.addFile(t, "fresh", time.Minute, false, models.MirrorNone)

	result, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if result.Deleted != 1 || result.Evaluated != 1 {
		t.Errorf("result = %+v, want 1 evaluated, 1 deleted", result)
	}

	if _, err := f.repo.GetByID(ctx, "old"); !errors.Is(err, repository.ErrNotFound) {
		t.Error("expired row should be gone")
	}
	if exists, _ := f.store.Exists(ctx, "old.txt"); exists {
		t.Error("expired file should be gone from storage")
	}
	if _, err := f.repo.GetByID(ctx, "fresh"); err != nil {
		t.Errorf("fresh file should survive: %v", err)
	}
}

func TestRunOnceSparesPermanentFiles(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(t, false)
	ctx := context.Background()

	f.addFile(t, "keeper", 100*time.Hour, true, models.MirrorNone)

	result, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if result.Evaluated != 0 {
		t.Errorf("permanent file should not even be a candidate, got %+v", result)
	}
	if _, err := f.repo.GetByID(ctx, "keeper"); err != nil {
		t.Errorf("permanent file should survive: %v", err)
	}
}

func TestRunOnceSkipsUnconfirmedMirror(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(t, true)
	ctx := context.Background()

	// Past retention but the remote copy is not confirmed.
	f.addFile(t, "pending", 2*time.Hour, false, models.MirrorPending)
	f.addFile(t, "failed", 2*time.Hour, false, models.MirrorFailed)
	f.addFile(t, "unmirrored", 2*time.Hour, false, models.MirrorNone)

	result, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if result.Skipped != 3 || result.Deleted != 0 {
		t.Errorf("result = %+v, want 3 skipped, 0 deleted", result)
	}

	for _, id := range []string{"pending", "failed", "unmirrored"} {
		if _, err := f.repo.GetByID(ctx, id); err != nil {
			t.Errorf("file %s must not be deleted before its mirror is confirmed: %v", id, err)
		}
	}
}

func TestRunOnceDeletesAfterMirrorConfirmed(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(t, true)
	ctx := context.Background()

	file := f.addFile(t, "mirrored", 2*time.Hour, false, models.MirrorPending)

	// First run: still pending, deferred.
	result, _ := s.RunOnce(ctx)
	if result.Skipped != 1 {
		t.Fatalf("first run result = %+v, want 1 skipped", result)
	}

	// Mirror completes; the next run deletes everywhere.
	if err := f.repo.SetMirrorStatus(ctx, file.ID, models.MirrorComplete, "mirror/"+file.StoredName); err != nil {
		t.Fatalf("SetMirrorStatus failed: %v", err)
	}

	result, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second RunOnce failed: %v", err)
	}
	if result.Deleted != 1 {
		t.Fatalf("second run result = %+v, want 1 deleted", result)
	}

	if len(f.remote.deleted) != 1 || f.remote.deleted[0] != "mirror/mirrored.txt" {
		t.Errorf("remote deletions = %v, want [mirror/mirrored.txt]", f.remote.deleted)
	}
	if snap := f.counters.Snapshot(); snap.Deleted != 1 {
		t.Errorf("Deleted counter = %d, want 1", snap.Deleted)
	}
}

func TestRunOnceUpdatesStorageCounter(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(t, false)

	file := f.addFile(t, "old", 2*time.Hour, false, models.MirrorNone)
	f.counters.RecordUpload(file.SizeBytes) // as the upload path would have

	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if snap := f.counters.Snapshot(); snap.StorageBytes != 0 {
		t.Errorf("StorageBytes = %d, want 0 after deleting the only file", snap.StorageBytes)
	}
}

func TestRunOnceIsolatesPerItemFailures(t *testing.T) {
	f := newFixture(t)
	f.remote.failOn = "mirror/bad.txt"
	s := f.scheduler(t, true)
	ctx := context.Background()

	// The remote delete fails for one file; the other file in the same
	// batch must still be deleted.
	f.addFile(t, "bad", 2*time.Hour, false, models.MirrorComplete)
	f.addFile(t, "good", 2*time.Hour, false, models.MirrorComplete)

	result, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if result.Errors != 1 || result.Deleted != 1 || result.Evaluated != 2 {
		t.Errorf("result = %+v, want 2 evaluated, 1 deleted, 1 error", result)
	}

	// The failed file's row survives for the next run.
	if _, err := f.repo.GetByID(ctx, "bad"); err != nil {
		t.Errorf("failed file's row should be preserved for retry: %v", err)
	}
	if _, err := f.repo.GetByID(ctx, "good"); !errors.Is(err, repository.ErrNotFound) {
		t.Error("the healthy file should still be deleted")
	}
}

func TestRunOnceReconcilesMissingLocalFile(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(t, false)
	ctx := context.Background()

	file := f.addFile(t, "dangling", 2*time.Hour, false, models.MirrorNone)
	// Simulate a previous run that removed the file but crashed before the row.
	if err := f.store.Delete(ctx, file.StoredName); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	result, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if result.Deleted != 1 {
		t.Errorf("result = %+v, want the dangling row reconciled as 1 deleted", result)
	}
	if _, err := f.repo.GetByID(ctx, "dangling"); !errors.Is(err, repository.ErrNotFound) {
		t.Error("dangling row should be removed")
	}
}

func TestRunOnceHonorsCancellationBetweenItems(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(t, false)

	f.addFile(t, "a", 2*time.Hour, false, models.MirrorNone)
	f.addFile(t, "b", 2*time.Hour, false, models.MirrorNone)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RunOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunOnce error = %v, want context.Canceled", err)
	}
}
