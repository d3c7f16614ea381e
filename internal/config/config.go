// Package config loads and validates Jido's TOML instance configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s"
// or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the top-level Jido instance configuration (spec.md §6.4
// "Environment / configuration").
type Config struct {
	Instance  Instance                   `toml:"instance"`
	Scheduler Scheduler                  `toml:"scheduler"`
	Telemetry Telemetry                  `toml:"telemetry"`
	Retry     RetryPolicy                `toml:"retry"`
	Modules   map[string]ModuleReference `toml:"modules"`
}

// Instance configures the AgentSupervisor's own process-level knobs.
type Instance struct {
	Name            string   `toml:"name"`
	LogLevel        string   `toml:"log_level"`
	LockFile        string   `toml:"lock_file"`
	MailboxCapacity int      `toml:"mailbox_capacity"`
	DefaultDispatch string   `toml:"default_dispatch"` // dispatch descriptor kind ("noop", "pid", "named", "pubsub", "http", "webhook", "logger", "console")
	OnParentDeath   string   `toml:"on_parent_death"`  // "continue" (default), "stop", "clear_parent"
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	// ReapInterval, when positive, enables the background stale-agent
	// reaper; zero (the default) disables it entirely.
	ReapInterval   Duration `toml:"reap_interval"`
	ReapStaleAfter Duration `toml:"reap_stale_after"`
}

// Scheduler controls whether Schedule/Cron/CronCancel directives have a
// backing timer/cron implementation at all (spec.md §4.5, §4.8).
type Scheduler struct {
	Enabled bool `toml:"enabled"`
}

// Telemetry configures the optional OpenTelemetry trace exporter
// (spec.md §6.3). Empty Endpoint disables export entirely.
type Telemetry struct {
	Endpoint       string `toml:"endpoint"`
	ServiceName    string `toml:"service_name"`
	ServiceVersion string `toml:"service_version"`
}

// RetryPolicy is the instance-wide default for directive/child-process
// retry backoff (spec.md §6.4, §9); per-module overrides may layer on
// top via ModuleReference.Retry.
type RetryPolicy struct {
	MaxRetries    int      `toml:"max_retries"`
	InitialDelay  Duration `toml:"initial_delay"`
	BackoffFactor float64  `toml:"backoff_factor"`
	MaxDelay      Duration `toml:"max_delay"`
}

// ModuleReference declares one agent module available for StartAgent
// (spec.md §3.1 "module"): Path identifies where a host program's module
// registry should look up the compiled agent.Definition to register
// under Name — config only records the binding, it does not itself know
// how to construct a Definition (that is always Go code).
type ModuleReference struct {
	Path  string      `toml:"path"`
	Retry RetryPolicy `toml:"retry"`
}

// Load reads and validates a Jido TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	normalizePaths(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Reload reads and validates a Jido TOML configuration file. It mirrors
// Load but is named distinctly to reflect runtime-refresh call sites.
func Reload(path string) (*Config, error) {
	return Load(path)
}

// Clone returns a deep copy of cfg so callers can safely mutate the
// result (grounded on the teacher's Config.Clone, trimmed to this
// package's actual reference-type fields).
func (cfg *Config) Clone() *Config {
	if cfg == nil {
		return nil
	}
	cloned := *cfg
	cloned.Modules = make(map[string]ModuleReference, len(cfg.Modules))
	for name, ref := range cfg.Modules {
		cloned.Modules[name] = ref
	}
	return &cloned
}

func applyDefaults(cfg *Config) {
	if cfg.Instance.Name == "" {
		cfg.Instance.Name = "jido"
	}
	if cfg.Instance.LogLevel == "" {
		cfg.Instance.LogLevel = "info"
	}
	if cfg.Instance.MailboxCapacity == 0 {
		cfg.Instance.MailboxCapacity = 1024
	}
	if cfg.Instance.DefaultDispatch == "" {
		cfg.Instance.DefaultDispatch = "noop"
	}
	if cfg.Instance.OnParentDeath == "" {
		cfg.Instance.OnParentDeath = "continue"
	}
	if cfg.Instance.ShutdownTimeout.Duration == 0 {
		cfg.Instance.ShutdownTimeout.Duration = 30 * time.Second
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.InitialDelay.Duration == 0 {
		cfg.Retry.InitialDelay.Duration = 5 * time.Second
	}
	if cfg.Retry.BackoffFactor == 0 {
		cfg.Retry.BackoffFactor = 2.0
	}
	if cfg.Retry.MaxDelay.Duration == 0 {
		cfg.Retry.MaxDelay.Duration = 2 * time.Minute
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.Instance.Name
	}
}

func normalizePaths(cfg *Config) {
	cfg.Instance.LockFile = expandHome(strings.TrimSpace(cfg.Instance.LockFile))
	for name, ref := range cfg.Modules {
		ref.Path = expandHome(strings.TrimSpace(ref.Path))
		cfg.Modules[name] = ref
	}
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

func validate(cfg *Config) error {
	switch cfg.Instance.OnParentDeath {
	case "continue", "stop", "clear_parent":
	default:
		return fmt.Errorf("instance.on_parent_death: must be one of continue, stop, clear_parent, got %q", cfg.Instance.OnParentDeath)
	}

	switch cfg.Instance.DefaultDispatch {
	case "noop", "pid", "named", "pubsub", "http", "webhook", "logger", "console":
	default:
		return fmt.Errorf("instance.default_dispatch: unknown descriptor kind %q", cfg.Instance.DefaultDispatch)
	}

	if cfg.Instance.MailboxCapacity <= 0 {
		return fmt.Errorf("instance.mailbox_capacity must be > 0")
	}

	if err := validateRetryPolicy("retry", cfg.Retry); err != nil {
		return err
	}
	for name, ref := range cfg.Modules {
		if ref.Path == "" {
			return fmt.Errorf("modules.%s.path is required", name)
		}
		if err := validateRetryPolicy(fmt.Sprintf("modules.%s.retry", name), ref.Retry); err != nil {
			return err
		}
	}

	return nil
}

func validateRetryPolicy(fieldPath string, policy RetryPolicy) error {
	if policy.MaxRetries < 0 {
		return fmt.Errorf("%s.max_retries cannot be negative: %d", fieldPath, policy.MaxRetries)
	}
	if policy.InitialDelay.Duration < 0 {
		return fmt.Errorf("%s.initial_delay cannot be negative: %s", fieldPath, policy.InitialDelay.Duration)
	}
	if policy.MaxDelay.Duration < 0 {
		return fmt.Errorf("%s.max_delay cannot be negative: %s", fieldPath, policy.MaxDelay.Duration)
	}
	if policy.BackoffFactor < 0 {
		return fmt.Errorf("%s.backoff_factor cannot be negative: %f", fieldPath, policy.BackoffFactor)
	}
	return nil
}
