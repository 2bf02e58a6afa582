package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Manager holds the current configuration and reloads it when the file
// changes on disk.
type Manager struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	config    *Config
	callbacks []func(old, cur *Config)
}

// NewManager loads path. An empty path yields the defaults and Watch
// returns immediately.
func NewManager(path string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	return &Manager{
		path:     path,
		debounce: 200 * time.Millisecond,
		logger:   logger,
		config:   cfg,
	}, nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnChange registers fn, called after every successful reload with the
// previous and the new configuration.
func (m *Manager) OnChange(fn func(old, cur *Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Reload re-reads the file. An invalid file is logged and the current
// configuration stays in place.
func (m *Manager) Reload() error {
	if m.path == "" {
		return nil
	}
	cfg, err := LoadFile(m.path)
	if err != nil {
		m.logger.Warn("config: reload rejected", "path", m.path, "error", err)
		return err
	}

	m.mu.Lock()
	old := m.config
	m.config = cfg
	callbacks := append(([]func(old, cur *Config))(nil), m.callbacks...)
	m.mu.Unlock()

	m.logger.Info("config: reloaded", "path", m.path)
	for _, fn := range callbacks {
		fn(old, cfg)
	}
	return nil
}

// Watch reloads the file whenever it is written, until ctx is done. The
// parent directory is watched so editors that replace the file by rename
// are seen too.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer fsw.Close()

	abs, err := filepath.Abs(m.path)
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(abs), err)
	}
	m.logger.Debug("config: watching", "path", abs)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(m.debounce)
			} else {
				timer.Reset(m.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			m.Reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("config: watcher error", "error", err)
		}
	}
}
