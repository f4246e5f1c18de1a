// Package watcher reports debounced changes under a directory tree using fsnotify.
package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/kensaku/internal/scanner"
	"github.com/hyperjump/kensaku/pkg/utils"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// ChangeFunc receives the sorted, de-duplicated paths touched during one burst.
type ChangeFunc func(paths []string)

// Watcher watches a directory tree, dot-directories excluded, and calls
// onChange once a burst of events has been quiet for the debounce interval.
type Watcher struct {
	root     string
	onChange ChangeFunc
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	pending  map[string]bool
	timer    *time.Timer
	watched  map[string]bool
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets the quiet interval before onChange fires.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for root.
func NewWatcher(root string, onChange ChangeFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:     filepath.Clean(root),
		onChange: onChange,
		debounce: defaultDebounce,
		pending:  make(map[string]bool),
		watched:  make(map[string]bool),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = utils.OrNop(w.logger)
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	if err := w.addTreeLocked(w.root); err != nil {
		_ = w.watcher.Close()
		w.watcher = nil
		w.started = false
		w.mu.Unlock()
		return err
	}
	w.logger.Debug("watcher starting",
		zap.String("root", w.root),
		zap.Int("directories", len(w.watched)),
		zap.Duration("debounce", w.debounce))
	w.mu.Unlock()
	go w.run(ctx, watcher)
	return nil
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.relevant(path) || ev.Op == fsnotify.Chmod {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return
	}
	if ev.Has(fsnotify.Create) {
		// A directory created or moved in must be watched too; files
		// already inside it are picked up by the next full run.
		if err := w.addTreeLocked(path); err != nil {
			w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
		}
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.forgetLocked(path)
	}
	w.pending[path] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.timer = nil
	onChange := w.onChange
	w.mu.Unlock()

	sort.Strings(paths)
	w.logger.Debug("watcher change burst", zap.Int("paths", len(paths)))
	if onChange != nil {
		onChange(paths)
	}
}

// relevant reports whether path lies under root without a dot-named component.
func (w *Watcher) relevant(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	if rel == "." {
		return true
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if scanner.IsHidden(part) {
			return false
		}
	}
	return true
}

// addTreeLocked watches dir and every non-hidden directory below it.
// A path that is not a directory is ignored.
func (w *Watcher) addTreeLocked(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && scanner.IsHidden(d.Name()) {
			return filepath.SkipDir
		}
		if w.watched[path] {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.watched[path] = true
		return nil
	})
}

func (w *Watcher) forgetLocked(path string) {
	prefix := path + string(filepath.Separator)
	for p := range w.watched {
		if p == path || strings.HasPrefix(p, prefix) {
			_ = w.watcher.Remove(p)
			delete(w.watched, p)
		}
	}
}

// Directories returns the watched directories, sorted.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.watched))
	for p := range w.watched {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Stop stops the watcher and releases resources. Pending changes are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = make(map[string]bool)
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
