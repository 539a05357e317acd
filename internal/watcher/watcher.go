// Package watcher ingests documents dropped into watched directories using
// fsnotify, with per-file debouncing.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// IngestFunc receives the path of a dropped file once its writes settle.
// Errors are logged, not retried; re-saving the file triggers another attempt.
type IngestFunc func(ctx context.Context, path string) error

// DropWatcher watches drop directories and hands settled files to the
// ingest callback. Removals are ignored: documents are content addressed,
// deleting the dropped file does not delete the document.
type DropWatcher struct {
	dirs       []string
	extensions []string
	ingest     IngestFunc
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	timers   map[string]*time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// New builds a watcher over the given directories. Extensions filter which
// files are ingested (empty means all). A nil logger disables logging.
func New(dirs, extensions []string, ingest IngestFunc, logger *zap.Logger) *DropWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DropWatcher{
		dirs:       dirs,
		extensions: extensions,
		ingest:     ingest,
		debounce:   defaultDebounce,
		logger:     logger,
		timers:     make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
}

// Start creates missing drop directories, registers watches recursively, and
// begins processing events until ctx is cancelled or Stop is called.
func (w *DropWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	w.started = true

	for _, dir := range w.dirs {
		if err := w.watchTreeLocked(dir); err != nil {
			_ = w.fsw.Close()
			w.fsw = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()

	w.logger.Info("drop watcher started",
		zap.Strings("directories", w.dirs),
		zap.Strings("extensions", w.extensions))
	go w.run(ctx)
	return nil
}

func (w *DropWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("drop watcher error", zap.Error(err))
			}
		}
	}
}

func (w *DropWatcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		w.cancelTimer(ev.Name)
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		// A folder copied into the drop dir: watch it and ingest its contents.
		w.mu.Lock()
		if w.fsw != nil {
			_ = w.watchTreeLocked(ev.Name)
		}
		w.mu.Unlock()
		w.syncTree(ctx, ev.Name)
		return
	}
	if w.matches(ev.Name) {
		w.scheduleIngest(ctx, ev.Name)
	}
}

// scheduleIngest resets the file's debounce timer so a burst of writes
// produces one ingestion.
func (w *DropWatcher) scheduleIngest(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.ingestFile(ctx, path)
	})
}

func (w *DropWatcher) cancelTimer(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *DropWatcher) ingestFile(ctx context.Context, path string) {
	if w.ingest == nil {
		return
	}
	if err := w.ingest(ctx, path); err != nil {
		w.logger.Warn("drop ingest failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("drop ingested", zap.String("path", path))
}

// SyncExisting ingests files already present in the drop directories. Call
// after Start to pick up documents dropped while the server was down.
func (w *DropWatcher) SyncExisting(ctx context.Context) {
	for _, dir := range w.dirs {
		w.syncTree(ctx, dir)
	}
}

func (w *DropWatcher) syncTree(ctx context.Context, root string) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if w.matches(path) {
			w.ingestFile(ctx, path)
		}
		return nil
	})
}

// watchTreeLocked creates the directory if missing and registers watches for
// it and every subdirectory. Caller holds w.mu.
func (w *DropWatcher) watchTreeLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *DropWatcher) matches(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, e := range w.extensions {
		if strings.ToLower(strings.TrimPrefix(e, ".")) == ext {
			return true
		}
	}
	return false
}

// Stop stops the watcher and releases resources.
func (w *DropWatcher) Stop() {
	w.mu.Lock()
	if !w.started || w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
