package platform

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// ConfigWatcher reloads feature flags when the config file changes. Other
// settings need a restart.
type ConfigWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	features *Features
	done     chan struct{}
	stopOnce sync.Once
}

// NewConfigWatcher watches path and applies its feature flags to features.
func NewConfigWatcher(path string, features *Features) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	// Editors often replace the file, so watch its directory.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &ConfigWatcher{watcher: w, path: abs, features: features, done: make(chan struct{})}, nil
}

// Start begins watching in a new goroutine.
func (cw *ConfigWatcher) Start() {
	go cw.watch()
}

// Stop stops watching. It is safe to call more than once.
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		close(cw.done)
		err = cw.watcher.Close()
	})
	return err
}

func (cw *ConfigWatcher) reload() {
	cfg, err := LoadConfig(cw.path)
	if err != nil {
		slog.Warn("config reload failed", "path", cw.path, "error", err)
		return
	}
	cw.features.Apply(cfg.Features)
	slog.Debug("config reloaded", "path", cw.path)
}

func (cw *ConfigWatcher) watch() {
	var debounce *time.Timer
	for {
		select {
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != cw.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, cw.reload)
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "path", cw.path, "error", err)
		case <-cw.done:
			if debounce != nil {
				debounce.Stop()
			}
			return
		}
	}
}
