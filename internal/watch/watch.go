// Package watch re-runs generation sessions when IR documents change. A new
// change cancels the session still in flight before the next one starts.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// Runner runs one session for the changed paths.
type Runner func(ctx context.Context, changed []string) error

// Watcher debounces file events into sessions.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	include   func(path string) bool
	excludes  []glob.Glob
	run       Runner

	pending   map[string]struct{}
	pendingMu sync.Mutex
	timer     *time.Timer

	sessionMu sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	parent    context.Context
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInclude restricts sessions to paths accepted by fn.
func WithInclude(fn func(path string) bool) Option {
	return func(w *Watcher) { w.include = fn }
}

// New creates a Watcher. Exclude patterns are matched against base names.
func New(debounce time.Duration, excludes []string, run Runner, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		debounce: debounce,
		run:      run,
		pending:  make(map[string]struct{}),
		parent:   context.Background(),
	}
	for _, pattern := range excludes {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		w.excludes = append(w.excludes, g)
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.fsWatcher = fsw
	return w, nil
}

// Watch watches paths until ctx is done. A file path watches its directory.
func (w *Watcher) Watch(ctx context.Context, paths []string) error {
	w.sessionMu.Lock()
	w.parent = ctx
	w.sessionMu.Unlock()

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			path = filepath.Dir(path)
		}
		if err := w.watchRecursive(path); err != nil {
			return err
		}
	}

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)

		case <-ctx.Done():
			w.stopSession()
			return ctx.Err()
		}
	}
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.fsWatcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watchRecursive(event.Name); err != nil {
				slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if !w.accepts(event.Name) {
		return
	}
	w.scheduleChange(event.Name)
}

func (w *Watcher) accepts(path string) bool {
	base := filepath.Base(path)
	for _, g := range w.excludes {
		if g.Match(base) {
			return false
		}
	}
	return w.include == nil || w.include(path)
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	w.startSession(paths)
}

// startSession cancels the running session, waits for it to unwind and starts a
// new one.
func (w *Watcher) startSession(paths []string) {
	w.sessionMu.Lock()
	defer w.sessionMu.Unlock()

	if w.cancel != nil {
		slog.Info("cancelling in-flight session")
		w.cancel()
		<-w.done
	}
	if w.parent.Err() != nil {
		w.cancel, w.done = nil, nil
		return
	}

	ctx, cancel := context.WithCancel(w.parent)
	done := make(chan struct{})
	w.cancel, w.done = cancel, done

	slog.Info("inputs changed", "paths", len(paths))
	go func() {
		defer close(done)
		if err := w.run(ctx, paths); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("session failed", "error", err)
		}
	}()
}

func (w *Watcher) stopSession() {
	w.sessionMu.Lock()
	defer w.sessionMu.Unlock()
	if w.cancel != nil {
		w.cancel()
		<-w.done
		w.cancel, w.done = nil, nil
	}
}

// Close stops the pending timer, the running session and the file watcher.
func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	w.stopSession()
	return w.fsWatcher.Close()
}
