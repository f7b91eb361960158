package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"recast/internal/logging"
)

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("age %s: %v", path, err)
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldArtifacts(t *testing.T) {
	dir := t.TempDir()

	stalePart := filepath.Join(dir, "movie.webmhd.webm.1a2b3c4d.part")
	writeAged(t, stalePart, 2*time.Hour)
	staleLock := filepath.Join(dir, "movie.webmhd.webm.lock")
	writeAged(t, staleLock, 2*time.Hour)
	freshPart := filepath.Join(dir, "other.mp4.9f8e7d6c.part")
	writeAged(t, freshPart, time.Minute)

	result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removals, got %v", result.Removed)
	}
	for _, path := range []string{stalePart, staleLock} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", path)
		}
	}
	if _, err := os.Stat(freshPart); err != nil {
		t.Errorf("fresh artifact should survive: %v", err)
	}
}

func TestCleanStaleIgnoresForeignEntries(t *testing.T) {
	dir := t.TempDir()

	note := filepath.Join(dir, "README.txt")
	writeAged(t, note, 3*time.Hour)
	if err := os.Mkdir(filepath.Join(dir, "nested.part"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())

	if len(result.Removed) != 0 {
		t.Fatalf("expected no removals, got %v", result.Removed)
	}
	if _, err := os.Stat(note); err != nil {
		t.Errorf("foreign file should survive: %v", err)
	}
}

func TestCleanStaleSkipsHeldLocks(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "movie.webmhd.webm.lock")

	holder := flock.New(lockPath)
	locked, err := holder.TryLock()
	if err != nil || !locked {
		t.Fatalf("acquire lock: locked=%v err=%v", locked, err)
	}
	defer holder.Unlock()

	stamp := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(lockPath, stamp, stamp); err != nil {
		t.Fatalf("age lock: %v", err)
	}

	result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("held lock must not be removed, got %v", result.Removed)
	}

	if err := holder.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := os.Chtimes(lockPath, stamp, stamp); err != nil {
		t.Fatalf("re-age lock: %v", err)
	}
	result = CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
	if len(result.Removed) != 1 {
		t.Fatalf("released lock should be removed, got %v", result.Removed)
	}
}

func TestListReportsArtifacts(t *testing.T) {
	dir := t.TempDir()
	part := filepath.Join(dir, "movie.mp4.0a1b2c3d.part")
	writeAged(t, part, time.Minute)

	artifacts, err := List(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(artifacts))
	}
	got := artifacts[0]
	if got.Path != part {
		t.Errorf("Path = %q, want %q", got.Path, part)
	}
	if got.Size != int64(len("partial")) {
		t.Errorf("Size = %d, want %d", got.Size, len("partial"))
	}
	if got.Held {
		t.Error("plain part file should not report a held lock")
	}
	if got.ModTime.IsZero() {
		t.Error("ModTime should be set")
	}
}
