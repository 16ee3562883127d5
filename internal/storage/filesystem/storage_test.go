package filesystem

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
)

func newTestStorage(t *testing.T) *FilesystemStorage {
	t.Helper()

	fs, err := NewFilesystemStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStorage failed: %v", err)
	}
	return fs
}

func TestStoreAndRetrieve(t *testing.T) {
	fs := newTestStorage(t)
	ctx := context.Background()
	content := []byte("hello cdn")

	written, err := fs.Store(ctx, "abc123.txt", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if written != int64(len(content)) {
		t.Errorf("Store wrote %d bytes, want %d", written, len(content))
	}

	rc, err := fs.Retrieve(ctx, "abc123.txt")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Retrieve returned %q, want %q", got, content)
	}
}

func TestStoreLeavesNoTempFileBehind(t *testing.T) {
	fs := newTestStorage(t)

	if _, err := fs.Store(context.Background(), "f.bin", bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file %q left behind", e.Name())
		}
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	fs := newTestStorage(t)
	ctx := context.Background()

	fs.Store(ctx, "f.bin", bytes.NewReader([]byte("x")))

	if err := fs.Delete(ctx, "f.bin"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := fs.Delete(ctx, "f.bin"); err != nil {
		t.Fatalf("second Delete should be a no-op, got: %v", err)
	}

	exists, err := fs.Exists(ctx, "f.bin")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("file should be gone after Delete")
	}
}

func TestGetSize(t *testing.T) {
	fs := newTestStorage(t)
	ctx := context.Background()

	fs.Store(ctx, "f.bin", bytes.NewReader(make([]byte, 1234)))

	size, err := fs.GetSize(ctx, "f.bin")
	if err != nil {
		t.Fatalf("GetSize failed: %v", err)
	}
	if size != 1234 {
		t.Errorf("GetSize = %d, want 1234", size)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	fs := newTestStorage(t)
	ctx := context.Background()

	bad := []string{
		"../escape.txt",
		"..",
		"/etc/passwd",
		"sub/../../escape.txt",
		"sub/dir.txt", // subdirectories are not used by this layout
	}

	for _, name := range bad {
		if _, err := fs.Store(ctx, name, bytes.NewReader([]byte("x"))); err == nil {
			t.Errorf("Store(%q) should be rejected", name)
		}
		if _, err := fs.Retrieve(ctx, name); err == nil {
			t.Errorf("Retrieve(%q) should be rejected", name)
		}
	}
}
