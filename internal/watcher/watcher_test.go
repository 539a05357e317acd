package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) ingest(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestDropWatcher_IngestsNewFile(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	w := New([]string{dir}, []string{".txt"}, rec.ingest, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(800 * time.Millisecond)

	paths := rec.snapshot()
	if len(paths) < 1 || !strings.HasSuffix(paths[0], "note.txt") {
		t.Errorf("expected note.txt ingested, got %v", paths)
	}
}

func TestDropWatcher_ExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	w := New([]string{dir}, []string{".txt"}, rec.ingest, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "skip.xyz"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(800 * time.Millisecond)

	if paths := rec.snapshot(); len(paths) != 0 {
		t.Errorf("expected no ingestion for filtered extension, got %v", paths)
	}
}

func TestDropWatcher_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "old.txt"), []byte("existing"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignore.bin"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := New([]string{dir}, []string{".txt"}, rec.ingest, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SyncExisting(ctx)

	paths := rec.snapshot()
	if len(paths) != 1 || !strings.HasSuffix(paths[0], "old.txt") {
		t.Errorf("expected only old.txt, got %v", paths)
	}
}

func TestDropWatcher_CreatesMissingDirectory(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "drop", "docs")

	w := New([]string{dir}, nil, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("drop directory should exist after Start: %v", err)
	}
}

func TestDropWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	w := New([]string{dir}, []string{".txt"}, rec.ingest, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	sub := filepath.Join(dir, "batch")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "inside.txt"), []byte("deep"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(900 * time.Millisecond)

	found := false
	for _, p := range rec.snapshot() {
		if strings.HasSuffix(p, "inside.txt") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected inside.txt ingested, got %v", rec.snapshot())
	}
}

func TestMatches(t *testing.T) {
	w := New(nil, []string{".txt", "md"}, nil, nil)
	tests := []struct {
		path string
		want bool
	}{
		{"/a/b.txt", true},
		{"/a/b.TXT", true},
		{"/a/b.md", true},
		{"/a/b.pdf", false},
	}
	for _, tt := range tests {
		if got := w.matches(tt.path); got != tt.want {
			t.Errorf("matches(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}

	all := New(nil, nil, nil, nil)
	if !all.matches("/a/anything.bin") {
		t.Error("empty extension list should match everything")
	}
}
