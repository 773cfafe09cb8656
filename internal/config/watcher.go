package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Watcher keeps the latest parsed settings file available to the render loop.
// The loop calls Snapshot once per frame; reloads happen on a background goroutine.
type Watcher struct {
	path    string
	current *atomic.Pointer[Overlay]
	fsw     *fsnotify.Watcher
	logger  *zap.SugaredLogger
}

// NewWatcher loads path once and starts watching its directory.
// Watching the directory rather than the file survives editors that replace the file on save.
func NewWatcher(path string, logger *zap.SugaredLogger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	return &Watcher{
		path:    path,
		current: atomic.NewPointer(&cfg),
		fsw:     fsw,
		logger:  logger,
	}, nil
}

// Snapshot returns the most recently loaded settings.
func (w *Watcher) Snapshot() Overlay {
	return *w.current.Load()
}

// Run processes file events until ctx is cancelled. A file that fails to
// parse leaves the previous snapshot in place.
func (w *Watcher) Run(ctx context.Context) {
	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warnw("keeping previous config", "path", w.path, "error", err)
		return
	}
	w.current.Store(&cfg)
	w.logger.Debugw("config reloaded", "path", w.path)
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
