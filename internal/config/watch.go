package config

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	appLog "impactcal/internal/log"
)

// Watcher re-reads the config file when it changes on disk and serves
// the latest snapshot to the scheduler between runs. Listen address
// and schedule changes still need a restart; per-run knobs (sources,
// output path, VIP switch) take effect on the next run.
type Watcher struct {
	path string

	mu      sync.RWMutex
	current *Config
}

// NewWatcher returns a Watcher seeded with the given snapshot. An
// empty path means DefaultPath.
func NewWatcher(path string, initial *Config) *Watcher {
	if path == "" {
		path = DefaultPath
	}
	return &Watcher{path: path, current: initial}
}

// Current returns the latest configuration snapshot.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Watch reloads the config whenever its file is written or recreated.
// It watches the parent directory: editors and orchestrators replace
// files via rename, which drops a watch on the file itself. Watch
// returns once the watcher is installed; reloads run until ctx is
// cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return err
	}
	base := filepath.Base(w.path)

	go func() {
		defer fsw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				w.reload()
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				appLog.Warn("config watch error", "err", err)
			}
		}
	}()

	appLog.Info("watching config", "path", w.path)
	return nil
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		appLog.Error("config reload failed, keeping previous", err, "path", w.path)
		return
	}
	ApplyEnv(cfg)

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	appLog.Info("config reloaded", "path", w.path, "sources", len(cfg.Sources))
}
