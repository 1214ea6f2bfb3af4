// file: internal/watcher/watcher.go
// version: 3.0.0
// guid: b2c3d4e5-f6a7-8901-bcde-f23456789012

// Package watcher re-triggers analysis when audio files under a directory
// tree change.
package watcher

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the default debounce period.
const DefaultDebounce = 2 * time.Second

// Callback is invoked after the debounce period with the root directory and
// the sorted, de-duplicated audio paths that changed since the last call.
// Calls never overlap.
type Callback func(rootDir string, changed []string)

// Options configures a Watcher.
type Options struct {
	// Extensions are lower-case and include the leading dot.
	Extensions    []string
	Debounce      time.Duration
	IncludeHidden bool
	Logger        zerolog.Logger
}

// Watcher monitors a directory tree for audio file changes and invokes a
// callback after a debounce period.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	rootDir   string
	opts      Options
	callback  Callback
	stop      chan struct{}
	stopped   chan struct{}
	mu        sync.Mutex
	timer     *time.Timer
	pending   map[string]struct{}
	running   bool
	// serializes callbacks and lets Stop wait for one in flight
	fire sync.Mutex
}

// New creates a Watcher. A zero Debounce uses DefaultDebounce.
func New(callback Callback, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		opts:     opts,
		callback: callback,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		pending:  make(map[string]struct{}),
	}
}

// Start begins watching rootDir recursively. Calling it again is a no-op.
func (w *Watcher) Start(rootDir string) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsWatcher = fsw
	w.rootDir = rootDir

	if err := w.addRecursive(rootDir); err != nil {
		fsw.Close()
		return err
	}

	go w.eventLoop()
	return nil
}

// Stop shuts the watcher down, drops any pending change and waits for a
// running callback to return.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stop)
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
	}
	<-w.stopped

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	clear(w.pending)
	w.mu.Unlock()

	w.fire.Lock()
	w.fire.Unlock() //nolint:staticcheck // wait for an in-flight callback
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible dirs
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && !w.opts.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if watchErr := w.fsWatcher.Add(path); watchErr != nil {
			w.opts.Logger.Warn().Err(watchErr).Str("dir", path).Msg("cannot watch directory")
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	defer close(w.stopped)

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
		}
	}

	relevant := event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0
	if !relevant || !w.IsAudioFile(event.Name) {
		return
	}
	if !w.opts.IncludeHidden && strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	w.opts.Logger.Debug().Str("path", event.Name).Stringer("op", event.Op).Msg("audio change")
	w.scheduleScan(event.Name)
}

func (w *Watcher) scheduleScan(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Reset(w.opts.Debounce)
		return
	}
	w.timer = time.AfterFunc(w.opts.Debounce, w.flush)
}

func (w *Watcher) flush() {
	w.fire.Lock()
	defer w.fire.Unlock()

	w.mu.Lock()
	w.timer = nil
	if !w.running || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	clear(w.pending)
	w.mu.Unlock()

	slices.Sort(changed)
	w.opts.Logger.Info().Str("root", w.rootDir).Int("changed", len(changed)).Msg("triggering re-analysis")
	if w.callback != nil {
		w.callback(w.rootDir, changed)
	}
}

// IsAudioFile reports whether name has one of the watched extensions.
func (w *Watcher) IsAudioFile(name string) bool {
	return slices.Contains(w.opts.Extensions, strings.ToLower(filepath.Ext(name)))
}
