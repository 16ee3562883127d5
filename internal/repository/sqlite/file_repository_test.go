package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/alterbase/cdn/internal/models"
	"github.com/alterbase/cdn/internal/repository"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Initialize(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// Force single connection for in-memory databases
	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func testFile(id string, age time.Duration) *models.File {
	return &models.File{
		ID:           id,
		OriginalName: "photo.png",
		StoredName:   id + ".png",
		ContentType:  "image/png",
		SizeBytes:    2048,
		CreatedAt:    time.Now().UTC().Add(-age),
		MirrorStatus: models.MirrorNone,
	}
}

func TestFileRepository_CreateAndGet(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	ctx := context.Background()

	file := testFile("aB3xK9mQ", 0)
	if err := repo.Create(ctx, file); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "aB3xK9mQ")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.OriginalName != "photo.png" {
		t.Errorf("OriginalName = %q, want photo.png", got.OriginalName)
	}
	if got.SizeBytes != 2048 {
		t.Errorf("SizeBytes = %d, want 2048", got.SizeBytes)
	}
	if got.MirrorStatus != models.MirrorNone {
		t.Errorf("MirrorStatus = %q, want none", got.MirrorStatus)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be populated")
	}
}

func TestFileRepository_CreateDuplicate(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testFile("same", 0)); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	err := repo.Create(ctx, testFile("same", 0))
	if !errors.Is(err, repository.ErrDuplicateKey) {
		t.Fatalf("duplicate Create error = %v, want ErrDuplicateKey", err)
	}
}

func TestFileRepository_GetByIDNotFound(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("GetByID error = %v, want ErrNotFound", err)
	}
}

func TestFileRepository_Exists(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	ctx := context.Background()

	repo.Create(ctx, testFile("here", 0))

	if ok, err := repo.Exists(ctx, "here"); err != nil || !ok {
		t.Errorf("Exists(here) = %v, %v; want true, nil", ok, err)
	}
	if ok, err := repo.Exists(ctx, "gone"); err != nil || ok {
		t.Errorf("Exists(gone) = %v, %v; want false, nil", ok, err)
	}
}

func TestFileRepository_ListNewestFirst(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	ctx := context.Background()

	repo.Create(ctx, testFile("older", 2*time.Hour))
	repo.Create(ctx, testFile("newer", time.Hour))

	files, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("List returned %d files, want 2", len(files))
	}
	if files[0].ID != "newer" || files[1].ID != "older" {
		t.Errorf("List order = [%s, %s], want [newer, older]", files[0].ID, files[1].ID)
	}
}

func TestFileRepository_Delete(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	ctx := context.Background()

	repo.Create(ctx, testFile("victim", 0))

	if err := repo.Delete(ctx, "victim"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if err := repo.Delete(ctx, "victim"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestFileRepository_SetMirrorStatus(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	ctx := context.Background()

	repo.Create(ctx, testFile("f1", 0))

	if err := repo.SetMirrorStatus(ctx, "f1", models.MirrorPending, ""); err != nil {
		t.Fatalf("SetMirrorStatus(pending) failed: %v", err)
	}
	if err := repo.SetMirrorStatus(ctx, "f1", models.MirrorComplete, "remote/f1.png"); err != nil {
		t.Fatalf("SetMirrorStatus(complete) failed: %v", err)
	}

	got, _ := repo.GetByID(ctx, "f1")
	if got.MirrorStatus != models.MirrorComplete {
		t.Errorf("MirrorStatus = %q, want complete", got.MirrorStatus)
	}
	if got.MirrorHandle != "remote/f1.png" {
		t.Errorf("MirrorHandle = %q, want remote/f1.png", got.MirrorHandle)
	}
}

func TestFileRepository_MirrorCompleteIsTerminal(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	ctx := context.Background()

	repo.Create(ctx, testFile("f1", 0))
	repo.SetMirrorStatus(ctx, "f1", models.MirrorComplete, "remote/f1.png")

	err := repo.SetMirrorStatus(ctx, "f1", models.MirrorFailed, "")
	if !errors.Is(err, repository.ErrMirrorStateTerminal) {
		t.Fatalf("downgrade error = %v, want ErrMirrorStateTerminal", err)
	}

	// Re-asserting complete is idempotent, not an error.
	if err := repo.SetMirrorStatus(ctx, "f1", models.MirrorComplete, "remote/f1.png"); err != nil {
		t.Fatalf("idempotent complete failed: %v", err)
	}

	got, _ := repo.GetByID(ctx, "f1")
	if got.MirrorStatus != models.MirrorComplete {
		t.Errorf("MirrorStatus = %q, want complete", got.MirrorStatus)
	}
}

func TestFileRepository_SetMirrorStatusNotFound(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))

	err := repo.SetMirrorStatus(context.Background(), "nope", models.MirrorPending, "")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("SetMirrorStatus error = %v, want ErrNotFound", err)
	}
}

func TestFileRepository_FindExpired(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	ctx := context.Background()

	old := testFile("old", 3*time.Hour)
	fresh := testFile("fresh", time.Minute)
	keeper := testFile("keeper", 3*time.Hour)
	keeper.Permanent = true

	for _, f := range []*models.File{old, fresh, keeper} {
		if err := repo.Create(ctx, f); err != nil {
			t.Fatalf("Create(%s) failed: %v", f.ID, err)
		}
	}

	expired, err := repo.FindExpired(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("FindExpired failed: %v", err)
	}

	if len(expired) != 1 || expired[0].ID != "old" {
		ids := make([]string, len(expired))
		for i, f := range expired {
			ids[i] = f.ID
		}
		t.Errorf("FindExpired returned %v, want [old]", ids)
	}
}

func TestFileRepository_GetStats(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	ctx := context.Background()

	stats, err := repo.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalFiles != 0 || stats.StorageUsed != 0 {
		t.Errorf("empty stats = %+v, want zeros", stats)
	}

	repo.Create(ctx, testFile("a", 0))
	repo.Create(ctx, testFile("b", 0))

	stats, err = repo.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalFiles != 2 {
		t.Errorf("TotalFiles = %d, want 2", stats.TotalFiles)
	}
	if stats.StorageUsed != 4096 {
		t.Errorf("StorageUsed = %d, want 4096", stats.StorageUsed)
	}
}
