// Package watcher turns raw filesystem notifications under a workspace into
// debounced Created/Updated/Deleted events.
package watcher

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/metrics"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/pathutil"
)

// Options configures every watch started by a Manager.
type Options struct {
	// Debounce is the quiet period after the last raw event before pending
	// changes are emitted.
	Debounce time.Duration
	// Buffer is the capacity of each workspace's event channel.
	Buffer int
}

// DefaultOptions returns the standard debounce window and buffer size.
func DefaultOptions() Options {
	return Options{Debounce: 300 * time.Millisecond, Buffer: 256}
}

// Manager owns at most one watch per workspace.
type Manager struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	watches map[string]*watch
}

// NewManager returns a Manager. Zero option fields take their defaults.
func NewManager(opts Options, logger *slog.Logger) *Manager {
	def := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = def.Debounce
	}
	if opts.Buffer <= 0 {
		opts.Buffer = def.Buffer
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{opts: opts, logger: logger, watches: make(map[string]*watch)}
}

// Watch starts watching ws recursively. The returned channel carries the
// workspace's events and is closed by Unwatch or StopAll. Senders block
// while the channel is full, so the consumer must keep reading.
func (m *Manager) Watch(ws models.Workspace) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.watches[ws.ID]; ok {
		return nil, fmt.Errorf("watcher: workspace %s: %w", ws.ID, apperr.ErrAlreadyExists)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: new: %w: %w", apperr.ErrExternal, err)
	}
	w := &watch{
		wsID:     ws.ID,
		root:     ws.FolderPath,
		fsw:      fsw,
		debounce: m.opts.Debounce,
		out:      make(chan Event, m.opts.Buffer),
		done:     make(chan struct{}),
		pending:  make(map[string]Kind),
		logger:   m.logger.With(slog.String("workspace_id", ws.ID)),
	}
	if err := w.addRecursive(ws.FolderPath); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watcher: add %s: %w: %w", ws.FolderPath, apperr.ErrExternal, err)
	}

	w.wg.Add(1)
	go w.loop()
	m.watches[ws.ID] = w
	w.logger.Info("watcher: started", slog.String("root", ws.FolderPath))
	return w.out, nil
}

// Unwatch stops the workspace's watch. When it returns the OS handle is
// released and the event channel is closed.
func (m *Manager) Unwatch(id string) error {
	m.mu.Lock()
	w, ok := m.watches[id]
	delete(m.watches, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("watcher: workspace %s: %w", id, apperr.ErrNotFound)
	}
	w.stop()
	return nil
}

// StopAll stops every watch.
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := m.watches
	m.watches = make(map[string]*watch)
	m.mu.Unlock()

	for _, w := range all {
		w.stop()
	}
}

// Watching reports whether id has an active watch.
func (m *Manager) Watching(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.watches[id]
	return ok
}

type watch struct {
	wsID     string
	root     string
	fsw      *fsnotify.Watcher
	debounce time.Duration
	out      chan Event
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *slog.Logger

	// owned by loop
	pending map[string]Kind
	order   []string
}

func (w *watch) stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("watcher: close failed", slog.String("error", err.Error()))
		}
		w.wg.Wait()
		close(w.out)
		w.logger.Info("watcher: stopped")
	})
}

func (w *watch) loop() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.handle(ev) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		case <-timer.C:
			if !w.flush() {
				return
			}
		}
	}
}

// handle records a raw event and reports whether anything became pending.
func (w *watch) handle(ev fsnotify.Event) bool {
	rel, ok := pathutil.Rel(w.root, ev.Name)
	if !ok || rel == "" || Ignored(rel) {
		return false
	}

	var kind Kind
	switch {
	case ev.Has(fsnotify.Create):
		kind = Created
	case ev.Has(fsnotify.Write):
		kind = Updated
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		kind = Deleted
	default:
		return false
	}

	if kind == Created {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			return w.newDir(ev.Name)
		}
	}
	if !pathutil.IsMarkdown(rel) && kind != Deleted {
		return false
	}
	w.add(rel, kind)
	return true
}

// newDir starts watching a directory created after the watch began and
// queues its existing Markdown files as created.
func (w *watch) newDir(abs string) bool {
	if err := w.addRecursive(abs); err != nil {
		w.logger.Warn("watcher: add new dir failed",
			slog.String("path", abs),
			slog.String("error", err.Error()))
	}
	queued := false
	_ = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, ok := pathutil.Rel(w.root, p)
		if !ok || Ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && pathutil.IsMarkdown(rel) {
			w.add(rel, Created)
			queued = true
		}
		return nil
	})
	return queued
}

func (w *watch) add(rel string, kind Kind) {
	prev, seen := w.pending[rel]
	if !seen {
		w.order = append(w.order, rel)
	}
	w.pending[rel] = merge(prev, kind)
}

// flush emits pending events in arrival order. It returns false when the
// watch stopped mid-flush.
func (w *watch) flush() bool {
	order := w.order
	pending := w.pending
	w.order = nil
	w.pending = make(map[string]Kind)

	for _, rel := range order {
		ev := Event{WorkspaceID: w.wsID, Kind: pending[rel], Path: rel}
		select {
		case w.out <- ev:
			metrics.WatchEvents.WithLabelValues(ev.Kind.String()).Inc()
			w.logger.Debug("watcher: event", slog.String("path", rel), slog.String("kind", ev.Kind.String()))
		case <-w.done:
			return false
		}
	}
	return true
}

// addRecursive adds dir and every non-ignored subdirectory to the watch list.
func (w *watch) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := pathutil.Rel(w.root, p); ok && rel != "" && Ignored(rel) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}
