package config

import (
	"fmt"
	"sync"
)

// Manager provides thread-safe access to live configuration (spec.md §6.4
// "hot reload" is not specified as required, but the teacher's
// RWMutexManager pattern is kept since a long-running Instance benefits
// from a reloadable config source even if nothing currently calls Reload
// automatically).
type Manager interface {
	Get() *Config
	Set(cfg *Config)
	Reload(path string) error
}

// RWMutexManager is a read-heavy, RWMutex-backed Manager.
type RWMutexManager struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewManager constructs a manager seeded with initial.
func NewManager(initial *Config) *RWMutexManager {
	return &RWMutexManager{cfg: initial.Clone()}
}

// Get returns a cloned config snapshot under a shared lock, so callers
// never observe a partially-swapped config and cannot mutate shared state.
func (m *RWMutexManager) Get() *Config {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Clone()
}

// Set installs cfg as the current config.
func (m *RWMutexManager) Set(cfg *Config) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg.Clone()
}

// Reload loads config from path and atomically swaps it into place.
func (m *RWMutexManager) Reload(path string) error {
	if m == nil {
		return fmt.Errorf("config manager is nil")
	}
	if path == "" {
		return fmt.Errorf("config reload path is required")
	}
	loaded, err := Load(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = loaded
	return nil
}

var _ Manager = (*RWMutexManager)(nil)
