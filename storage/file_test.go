package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(FileConfig{Dir: dir})
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	saved := time.UnixMilli(1700000000123)
	fs.now = func() time.Time { return saved }
	ctx := context.Background()

	if _, err := fs.Get(ctx, "agenda"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := fs.Set(ctx, "agenda", []byte(`{"focus":"ship"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := fs.Get(ctx, "agenda")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"focus":"ship"}` {
		t.Fatalf("unexpected value %q", got)
	}
	at, err := fs.SavedAt("agenda")
	if err != nil {
		t.Fatalf("saved at: %v", err)
	}
	if !at.Equal(saved) {
		t.Fatalf("saved at = %v, want %v", at, saved)
	}
	if _, err := os.Stat(filepath.Join(dir, "agenda.snap.tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	if err := fs.Clear(ctx, "agenda"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := fs.Clear(ctx, "agenda"); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if _, err := fs.Get(ctx, "agenda"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestFileStoreDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(FileConfig{Dir: dir})
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	if err := fs.Set(ctx, "k", []byte("payload")); err != nil {
		t.Fatalf("set: %v", err)
	}
	path := filepath.Join(dir, "k.snap")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := fs.Get(ctx, "k"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for flipped byte, got %v", err)
	}

	if err := os.WriteFile(path, []byte("short"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := fs.Get(ctx, "k"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for short file, got %v", err)
	}
}

func TestFileStoreQuotaAndKeySanitizing(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(FileConfig{Dir: dir, MaxBytes: 4})
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	if err := fs.Set(ctx, "k", []byte("too long")); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if err := fs.Set(ctx, "../escape", []byte("ok")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "___escape.snap")); err != nil {
		t.Fatalf("expected sanitized file name: %v", err)
	}
}

func TestNewFileStoreRequiresDir(t *testing.T) {
	if _, err := NewFileStore(FileConfig{}); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
