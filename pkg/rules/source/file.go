package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/palisade/pkg/rules"
)

// FileSource loads a rule set from a single YAML or JSON file and
// watches it for changes, debounced so that editors and atomic-rename
// writers do not trigger reload storms.
type FileSource struct {
	path     string
	interval time.Duration
	logger   *slog.Logger
}

// FileOption adjusts a FileSource.
type FileOption func(*FileSource)

// WithDebounceInterval sets the quiet period required after the last
// file event before a reload fires. The default is 100ms.
func WithDebounceInterval(d time.Duration) FileOption {
	return func(fs *FileSource) { fs.interval = d }
}

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(logger *slog.Logger) FileOption {
	return func(fs *FileSource) { fs.logger = logger }
}

// NewFileSource builds a file-backed rule source for path.
func NewFileSource(path string, opts ...FileOption) *FileSource {
	fs := &FileSource{
		path:     path,
		interval: 100 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Load reads and decodes the rule set file.
func (fs *FileSource) Load() (rules.Set, error) {
	return rules.LoadSet(fs.path)
}

// Watch blocks until ctx is cancelled, calling onUpdate with each
// successfully reloaded set. The parent directory is watched rather
// than the file itself so that atomic renames (write temp file, rename
// over the original) are observed.
func (fs *FileSource) Watch(ctx context.Context, onUpdate func(rules.Set)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(fs.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %q: %w", dir, err)
	}

	fs.logger.Info("rule set watcher started",
		"path", fs.path,
		"debounce_ms", fs.interval.Milliseconds(),
	)

	debounce := newDebouncer(fs.interval)
	defer debounce.Stop()

	reload := func() {
		set, err := fs.Load()
		if err != nil {
			fs.logger.Error("rule set reload failed", "path", fs.path, "error", err)
			return
		}
		fs.logger.Info("rule set reloaded", "path", fs.path, "revision", set.Revision)
		onUpdate(set)
	}

	for {
		select {
		case <-ctx.Done():
			fs.logger.Info("rule set watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !fs.relevant(event) {
				continue
			}
			fs.logger.Debug("rule set file event", "path", event.Name, "op", event.Op.String())
			debounce.Trigger(reload)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			// keep watching despite errors
			fs.logger.Error("rule set watcher error", "error", err)
		}
	}
}

// relevant filters directory events down to writes touching our file.
func (fs *FileSource) relevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(fs.path) ||
		strings.HasPrefix(filepath.Base(event.Name), filepath.Base(fs.path))
}

// debouncer coalesces bursts of triggers into one callback after a
// quiet interval.
type debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		stopped := d.stopped
		d.mu.Unlock()
		if cb != nil && !stopped {
			cb()
		}
	})
}

func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
