package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDeleteLogsImageCleanupFailureWhenImageMissing(t *testing.T) {
	dir := t.TempDir()
	store := &Store{dir: dir}
	id := "123e4567-e89b-12d3-a456-426614174000"
	jsonPath := filepath.Join(dir, id+".json")

	metaBytes, err := json.Marshal(Meta{ID: id, Format: "png"})
	if err != nil {
		t.Fatalf("json.Marshal() failed: %v", err)
	}
	if err := os.WriteFile(jsonPath, metaBytes, 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}

	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete() = %v; want nil", err)
	}
	if !strings.Contains(buf.String(), "snapshot image cleanup failed") {
		t.Fatalf("expected image cleanup debug log, got %q", buf.String())
	}
	if _, err := os.Stat(jsonPath); !os.IsNotExist(err) {
		t.Fatalf("sidecar still present after Delete(): %v", err)
	}
}

func TestPutGetReadImageRoundTrip(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "snaps"))
	if err != nil {
		t.Fatalf("NewStore() = %v", err)
	}

	img := []byte("\x89PNG fake")
	meta, err := store.Put(Meta{State: "REJECTED", URL: "https://app.example/log-in", Notes: "auto"}, img)
	if err != nil {
		t.Fatalf("Put() = %v; want nil", err)
	}
	if meta.ID == "" || meta.Format != "png" || meta.SizeBytes != len(img) || meta.CreatedAt.IsZero() {
		t.Fatalf("Put() meta = %+v; want id, png, size %d and timestamp", meta, len(img))
	}

	got, err := store.Get(meta.ID)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if got.State != "REJECTED" || got.Notes != "auto" {
		t.Fatalf("Get() = %+v; want stored fields", got)
	}

	data, format, err := store.ReadImage(meta.ID)
	if err != nil {
		t.Fatalf("ReadImage() = %v", err)
	}
	if !bytes.Equal(data, img) || format != "png" {
		t.Fatalf("ReadImage() = %q, %q; want original bytes and png", data, format)
	}
}

func TestListNewestFirst(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() = %v", err)
	}
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	older, _ := store.Put(Meta{State: "CHALLENGE", CreatedAt: base}, []byte("a"))
	newer, _ := store.Put(Meta{State: "REJECTED", CreatedAt: base.Add(time.Minute)}, []byte("b"))

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(metas) != 2 || metas[0].ID != newer.ID || metas[1].ID != older.ID {
		t.Fatalf("List() = %+v; want newest first", metas)
	}
}

func TestGetErrors(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() = %v", err)
	}
	if _, err := store.Get("../etc/passwd"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("Get(bad id) = %v; want ErrInvalidID", err)
	}
	if _, err := store.Get("123e4567-e89b-12d3-a456-426614174000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) = %v; want ErrNotFound", err)
	}
	if err := store.Delete("123e4567-e89b-12d3-a456-426614174000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete(missing) = %v; want ErrNotFound", err)
	}
}
