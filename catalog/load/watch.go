package load

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/syssam/pocket/catalog"
)

// Watcher reloads a catalog whenever its metadata changes on disk and
// publishes it through a catalog.Holder. A reload that fails keeps the
// previous catalog in place.
type Watcher struct {
	path     string
	holder   *catalog.Holder
	log      *slog.Logger
	debounce time.Duration
	onReload func(*catalog.Catalog, error)
	mu       sync.Mutex
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets how long the watcher waits for a burst of events to
// settle before reloading. Defaults to 200ms.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) WatchOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// WithReloadHook registers fn to be called after every reload attempt,
// with the new catalog or the error that kept the old one.
func WithReloadHook(fn func(*catalog.Catalog, error)) WatchOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// NewWatcher returns a watcher for path, a metadata file or directory.
func NewWatcher(path string, holder *catalog.Holder, opts ...WatchOption) *Watcher {
	w := &Watcher{
		path:     path,
		holder:   holder,
		log:      slog.Default(),
		debounce: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Reload loads the metadata and publishes the result.
func (w *Watcher) Reload() (*catalog.Catalog, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, err := Catalog(w.path)
	if err != nil {
		w.log.Error("catalog reload failed, keeping previous catalog", "path", w.path, "error", err)
	} else {
		w.holder.Store(c)
		w.log.Info("catalog reloaded", "path", w.path, "entities", c.Len())
		for _, issue := range c.Warnings() {
			w.log.Warn("catalog warning", "entity", issue.Entity, "field", issue.Field, "message", issue.Message)
		}
	}
	if w.onReload != nil {
		w.onReload(c, err)
	}
	return c, err
}

// Watch blocks, reloading on changes, until ctx is done.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	defer fw.Close()

	info, err := os.Stat(w.path)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	// Watch the directory of a single file so that editors replacing the
	// file are noticed.
	dir, file := w.path, ""
	if !info.IsDir() {
		dir, file = filepath.Dir(w.path), filepath.Base(w.path)
	}
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("load: watch %s: %w", dir, err)
	}
	w.log.Info("watching catalog metadata", "path", w.path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev, file) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				_, _ = w.Reload()
			})
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("catalog watcher error", "error", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event, file string) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(ev.Name)
	if file != "" {
		return name == file
	}
	return IsMetadataFile(name)
}
