package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDelay coalesces the burst of events an editor or an atomic rename
// produces into one reload.
const reloadDelay = 200 * time.Millisecond

// Resolver turns file plus environment settings into the config a command
// runs with, typically by applying command line flags. It may reject the
// result.
type Resolver func(Config) (Config, error)

// Manager owns the settings file. Get returns the file settings, Effective
// adds the environment, and Runtime adds the resolver on top of that. Watch
// hands every valid runtime config produced by a file change to a callback.
// Reload problems are logged through the global zap logger.
type Manager struct {
	path    string
	resolve Resolver

	mu      sync.RWMutex
	file    Config
	written []byte
}

type ManagerOption func(*Manager)

func WithConfigPath(path string) ManagerOption {
	return func(m *Manager) {
		if path != "" {
			m.path = path
		}
	}
}

func WithResolver(fn Resolver) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.resolve = fn
		}
	}
}

// NewManager loads the settings file, creating it with defaults rooted next
// to it when absent.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		resolve: func(c Config) (Config, error) { return c, nil },
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.path == "" {
		path, err := defaultConfigPath()
		if err != nil {
			return nil, err
		}
		m.path = path
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	file, data, err := m.readSettings()
	switch {
	case errors.Is(err, os.ErrNotExist):
		file = *DefaultConfigWithRoot(filepath.Dir(m.path))
		if data, err = m.persist(file); err != nil {
			return nil, fmt.Errorf("write initial config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load config: %w", err)
	default:
		if err := file.Validate(); err != nil {
			return nil, err
		}
	}

	m.file = file
	m.written = data
	return m, nil
}

func (m *Manager) Path() string {
	return m.path
}

// Get returns the settings stored in the file.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.file
}

// Effective returns the file settings with .env and environment overrides
// applied.
func (m *Manager) Effective() Config {
	cfg := m.Get()
	cfg.ApplyEnv()
	return cfg
}

// Runtime returns the effective settings passed through the resolver.
func (m *Manager) Runtime() (Config, error) {
	return m.resolve(m.Effective())
}

// Update validates cfg and writes it to the file. The API key is never
// written. Watchers in this process ignore the write; other processes
// watching the same file pick it up.
func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.APIKey = ""
	if reflect.DeepEqual(m.Get(), cfg) {
		return nil
	}
	data, err := m.persist(cfg)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.file = cfg
	m.written = data
	m.mu.Unlock()
	return nil
}

// Watch reloads the file after it changes and calls onChange with the new
// runtime config. A change that fails validation, the resolver, or the API
// key check is logged and the previous settings stay in force. Watching
// stops when ctx is done.
func (m *Manager) Watch(ctx context.Context, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	// The directory is watched so atomic renames onto the file are seen.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	go m.watch(ctx, watcher, onChange)
	return nil
}

func (m *Manager) watch(ctx context.Context, watcher *fsnotify.Watcher, onChange func(Config)) {
	defer watcher.Close()

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	target := filepath.Clean(m.path)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) == target && evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(reloadDelay)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger().Warn("config watcher error", zap.Error(err))
		case <-timer.C:
			if cfg, ok := m.reload(); ok && onChange != nil {
				onChange(cfg)
			}
		}
	}
}

// reload reads the file and returns the new runtime config when the file
// holds different, acceptable settings.
func (m *Manager) reload() (Config, bool) {
	file, data, err := m.readSettings()
	if err != nil {
		logger().Warn("config reload failed, keeping previous settings", zap.String("path", m.path), zap.Error(err))
		return Config{}, false
	}

	m.mu.RLock()
	unchanged := bytes.Equal(data, m.written) || reflect.DeepEqual(file, m.file)
	m.mu.RUnlock()
	if unchanged {
		return Config{}, false
	}

	if err := file.Validate(); err != nil {
		logger().Warn("invalid config file, keeping previous settings", zap.Error(err))
		return Config{}, false
	}
	cfg := file
	cfg.ApplyEnv()
	cfg, err = m.resolve(cfg)
	if err == nil {
		err = cfg.RequireAPIKey()
	}
	if err != nil {
		logger().Warn("config change rejected, keeping previous settings", zap.Error(err))
		return Config{}, false
	}

	m.mu.Lock()
	m.file = file
	m.written = data
	m.mu.Unlock()
	logger().Info("config reloaded", zap.String("path", m.path))
	return cfg, true
}

// readSettings decodes the file over defaults rooted next to it, so keys
// missing from the file keep their default values.
func (m *Manager) readSettings() (Config, []byte, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return Config{}, nil, err
	}
	cfg := *DefaultConfigWithRoot(filepath.Dir(m.path))
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, data, fmt.Errorf("parse %s: %w", m.path, err)
	}
	return cfg, data, nil
}

// persist writes cfg through a temp file and a rename and returns the bytes
// written.
func (m *Manager) persist(cfg Config) ([]byte, error) {
	data, err := json.MarshalIndent(&cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".config-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return nil, fmt.Errorf("replace config: %w", err)
	}
	return data, nil
}

func logger() *zap.Logger {
	return zap.L().Named("config")
}

// defaultConfigPath is config.json under the user config dir, or the working
// directory when there is none.
func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		if dir, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "StockBot", "config.json"), nil
}
