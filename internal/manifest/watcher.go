package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watcher state is protected by the registry mutex.
type watchState struct {
	watcher *fsnotify.Watcher
	active  bool
}

// StartWatcher begins monitoring the override directory for changes so that
// edited setup scripts take effect for subsequently created contexts.
// Contexts that already ran their setup scripts are not touched.
func (r *Registry) StartWatcher(ctx context.Context, dir string, enableHotReload bool) error {
	if !enableHotReload {
		slog.Info("Hot-reload disabled, skipping file system watcher setup")
		return nil
	}
	if dir == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watch.active {
		slog.Debug("Manifest watcher already active")
		return nil
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		slog.Debug("Override directory does not exist, skipping watcher setup", "path", dir)
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file system watcher: %w", err)
	}

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := watcher.Add(path); err != nil {
				return err
			}
			slog.Debug("Added directory to watcher", "path", path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("failed to add directories to watcher: %w", err)
	}

	r.watch.watcher = watcher
	r.watch.active = true

	go r.watchFiles(ctx)

	slog.Debug("Started file system watcher for manifest overrides", "directory", dir)
	return nil
}

// StopWatcher shuts the watcher down if it is running.
func (r *Registry) StopWatcher() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watch.watcher != nil {
		r.watch.watcher.Close()
	}
}

func (r *Registry) watchFiles(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		if r.watch.watcher != nil {
			r.watch.watcher.Close()
			r.watch.watcher = nil
		}
		r.watch.active = false
		r.mu.Unlock()
		slog.Info("Manifest watcher stopped")
	}()

	r.mu.RLock()
	watcher := r.watch.watcher
	r.mu.RUnlock()
	if watcher == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				r.invalidate(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Manifest watcher error", "error", err)
		}
	}
}

// invalidate drops all cached script contents after an override change. The
// cache is small; rereading is cheaper than tracking per-file mappings.
func (r *Registry) invalidate(name string) {
	r.mu.Lock()
	r.cache = make(map[string]string)
	r.mu.Unlock()
	slog.Debug("Invalidated script cache after override change", "file", name)
}
