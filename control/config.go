// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Engine and driver settings: defaults, TOML loading, and a thread-safe
// store that notifies listeners when settings change.

package control

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/momentics/unlimited-wait/api"
)

// Backend names accepted in Settings.Backend.
const (
	BackendNative = "native"
	BackendSim    = "sim"
)

// Duration decodes TOML strings such as "25ms" or "infinite".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "infinite" || s == "INFINITE" {
		d.Duration = api.Infinite
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	if d.Duration < 0 {
		return []byte("infinite"), nil
	}
	return []byte(d.Duration.String()), nil
}

// Settings holds tunables shared by the engine, the facade and the CLI.
type Settings struct {
	PreallocatedSlots int      `toml:"preallocated_slots"` // Packets created up front by each engine
	BatchSize         int      `toml:"batch_size"`         // Completions retrieved per WaitMany call
	WaitTimeout       Duration `toml:"wait_timeout"`       // Default timeout for dispatch loops
	Alertable         bool     `toml:"alertable"`          // Whether dispatch loops wait alertably
	Backend           string   `toml:"backend"`            // "native" or "sim"
	LogLevel          string   `toml:"log_level"`          // zerolog level name
	EnableMetrics     bool     `toml:"enable_metrics"`     // Whether counters are collected
	EnableDebug       bool     `toml:"enable_debug"`       // Whether debug probes are registered
}

// DefaultSettings returns defaults suitable for most programs.
func DefaultSettings() Settings {
	return Settings{
		PreallocatedSlots: 8,                               // matches the engine default
		BatchSize:         16,                              // 16 completions per retrieval
		WaitTimeout:       Duration{25 * time.Millisecond}, // short idle wake-ups
		Alertable:         true,                            // let queued alerts interrupt
		Backend:           BackendNative,                   // real wait packets
		LogLevel:          "info",                          // quiet dispatch loop
		EnableMetrics:     true,                            // counters are cheap
		EnableDebug:       true,                            // probes only run on demand
	}
}

// Validate reports the first invalid field.
func (s Settings) Validate() error {
	if s.PreallocatedSlots < 0 {
		return api.NewError(api.KindInvalidParameter, "control.Settings").
			WithContext("preallocated_slots", s.PreallocatedSlots)
	}
	if s.BatchSize <= 0 {
		return api.NewError(api.KindInvalidParameter, "control.Settings").
			WithContext("batch_size", s.BatchSize)
	}
	switch s.Backend {
	case BackendNative, BackendSim:
	default:
		return api.NewError(api.KindInvalidParameter, "control.Settings").
			WithContext("backend", s.Backend)
	}
	return nil
}

// LoadSettings reads a TOML file over DefaultSettings. Keys absent from the
// file keep their defaults; unknown keys are rejected.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	meta, err := toml.DecodeFile(path, &s)
	if err != nil {
		return Settings{}, fmt.Errorf("control: load %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Settings{}, fmt.Errorf("control: load %s: unknown key %q", path, undecoded[0].String())
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("control: load %s: %w", path, err)
	}
	return s, nil
}

// ConfigStore holds the current Settings and notifies listeners on change.
type ConfigStore struct {
	mu        sync.RWMutex
	settings  Settings
	listeners []func(Settings)
}

// NewConfigStore initializes a store with s.
func NewConfigStore(s Settings) *ConfigStore {
	return &ConfigStore{settings: s}
}

// GetSnapshot returns a copy of the current settings.
func (cs *ConfigStore) GetSnapshot() Settings {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.settings
}

// SetConfig validates and installs s, then runs every listener with it in
// registration order.
func (cs *ConfigStore) SetConfig(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.settings = s
	listeners := slices.Clone(cs.listeners)
	cs.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
	return nil
}

// OnReload registers a listener called after each SetConfig.
func (cs *ConfigStore) OnReload(fn func(Settings)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
