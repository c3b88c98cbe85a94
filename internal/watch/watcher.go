// SPDX-License-Identifier: MPL-2.0

// Package watch reloads a scene file when it changes on disk.
//
// The watcher observes the directory holding the scene rather than the file
// itself, because editors commonly save by writing a temp file and renaming it
// over the original. Events are filtered by name and coalesced over a debounce
// window so one save produces one reload.
package watch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/simforge/simserver/internal/logging"
)

// DefaultDebounce is the quiet period used when Config.Debounce is unset.
const DefaultDebounce = 300 * time.Millisecond

var (
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watch: Run called more than once")

	// editor noise that must never trigger a reload
	defaultIgnores = []string{
		"*.swp",
		"*.swo",
		"*~",
		".#*",
		"#*#",
		".DS_Store",
	}
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Path is the scene file to watch.
		Path string

		// Also lists doublestar patterns, relative to the scene's directory,
		// for sibling files whose changes should also trigger a reload.
		Also []string

		// Debounce falls back to DefaultDebounce when zero or negative.
		Debounce time.Duration

		// OnChange receives the changed names relative to the scene's
		// directory. A nil callback is a no-op.
		OnChange func(ctx context.Context, changed []string) error

		Logger *log.Logger
	}

	// Watcher fires a debounced callback when the scene file changes.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		dir      string
		target   string
		debounce time.Duration
		logger   *log.Logger
		started  atomic.Bool
	}
)

// New validates cfg and registers the scene's directory with fsnotify.
func New(cfg Config) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, errors.New("watch: no path given")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %q: %w", cfg.Path, err)
	}
	for _, pat := range cfg.Also {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid pattern %q", pat)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		dir:      filepath.Dir(abs),
		target:   filepath.Base(abs),
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = logging.Discard()
	}

	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch: add directory %q: %w", w.dir, err)
	}
	return w, nil
}

// Run blocks until ctx is cancelled. It returns nil on cancellation and an
// error when the underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		busy    atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		// a slow reload must not overlap the next one
		if !busy.CompareAndSwap(false, true) {
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer busy.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		w.logger.Info("scene changed", "files", changed)
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Warn("reload failed", "err", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Debug("close fsnotify", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed unexpectedly")
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Base(evt.Name)
			if !w.Matches(name) {
				continue
			}

			mu.Lock()
			pending[name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed unexpectedly")
			}
			if isFatal(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// Matches reports whether a file name in the scene's directory should
// trigger a reload.
func (w *Watcher) Matches(name string) bool {
	for _, pat := range defaultIgnores {
		if ok, _ := doublestar.Match(pat, name); ok {
			return false
		}
	}
	if name == w.target {
		return true
	}
	for _, pat := range w.cfg.Also {
		if ok, _ := doublestar.Match(pat, filepath.ToSlash(name)); ok {
			return true
		}
	}
	return false
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

