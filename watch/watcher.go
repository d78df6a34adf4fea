// Package watch re-runs stamping and indexing when requirement
// documents change on disk.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for further changes
// before triggering a pass.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a document tree and runs a callback after each
// quiet period following a change.
type Watcher struct {
	docsDir  string
	debounce time.Duration
	logger   *slog.Logger
	run      func() error
	watcher  *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   map[string]struct{}
}

// New creates a watcher over docsDir. run is invoked once at startup
// and again after every settled batch of document changes.
func New(docsDir string, debounce time.Duration, logger *slog.Logger, run func() error) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		docsDir:  docsDir,
		debounce: debounce,
		logger:   logger,
		run:      run,
		watcher:  fsw,
		pending:  make(map[string]struct{}),
	}, nil
}

// Run performs the initial pass, then blocks processing change
// events until ctx is cancelled. Pass failures are logged; the loop
// keeps running so a later edit can repair the corpus.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.addWatchesRecursive(w.docsDir); err != nil {
		return err
	}

	if err := w.run(); err != nil {
		w.logger.Error("Initial pass failed", "error", err)
	}

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			if w.takePending() == 0 {
				continue
			}
			if err := w.run(); err != nil {
				w.logger.Error("Pass failed", "error", err)
			}
		}
	}
}

// handleEvent queues document changes and picks up new directories.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if trackableDir(event.Name) {
				if err := w.watcher.Add(event.Name); err != nil {
					w.logger.Warn("Failed to watch new directory",
						"path", event.Name,
						"error", err)
				}
			}
			return
		}
	}

	if !trackableDoc(event.Name) {
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] = struct{}{}
	w.pendingMu.Unlock()

	w.logger.Debug("Document change detected",
		"path", event.Name,
		"op", event.Op.String())
}

// takePending clears and counts the queued changes.
func (w *Watcher) takePending() int {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	n := len(w.pending)
	w.pending = make(map[string]struct{})
	return n
}

// addWatchesRecursive watches docsDir and every trackable
// subdirectory.
func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && !trackableDir(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory",
				"path", path,
				"error", err)
		}
		return nil
	})
}

// trackableDir skips hidden directories.
func trackableDir(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".")
}

// trackableDoc reports whether a changed path is a requirement
// document.
func trackableDoc(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}
