// Package config provides configuration file parsing for plugsync.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fathom-audio/plugsync/internal/store"
)

// Backend names accepted for reports_backend.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Defaults applied when the config file omits a value.
const (
	DefaultScanInterval = 3600 // one hour, catches changes the watcher misses
	DefaultDebounce     = 30
	DefaultPruneDays    = 90
	DefaultPluginsPath  = "/Library/Application Support/Avid/Audio/Plug-Ins"
)

// Config is the parsed contents of config.yaml.
type Config struct {
	// MachineName identifies this machine in the fleet. Defaults to the
	// hostname, sanitized for use in document names.
	MachineName string `yaml:"machine_name"`

	// PluginsPath is the folder scanned for plugin bundles.
	PluginsPath string `yaml:"plugins_path"`

	// ReportsBackend selects where snapshots go: "local" (a shared folder)
	// or "remote" (an HTTP document service).
	ReportsBackend string `yaml:"reports_backend"`

	// ReportsPath is the shared folder for the local backend.
	ReportsPath string `yaml:"reports_path"`

	// RemoteEndpoint and RemoteToken configure the remote backend.
	RemoteEndpoint string `yaml:"remote_endpoint"`
	RemoteToken    string `yaml:"remote_token"`

	// ScanIntervalSeconds is the periodic rescan interval for the daemon.
	ScanIntervalSeconds int `yaml:"scan_interval_seconds"`

	// DebounceSeconds is how long the daemon waits after the last filesystem
	// change before scanning.
	DebounceSeconds int `yaml:"debounce_seconds"`

	// HashBinaries enables content hashing of bundle binaries during scans.
	HashBinaries bool `yaml:"hash_binaries"`

	// PruneDays is the retention window for archived snapshots. Zero
	// disables pruning.
	PruneDays int `yaml:"prune_days"`
}

// Dir returns the plugsync config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/plugsync if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "plugsync"), nil
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns a config populated with defaults for this machine.
func Default() *Config {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown-machine"
	}
	return &Config{
		MachineName:         store.SafeMachineName(hostname),
		PluginsPath:         DefaultPluginsPath,
		ReportsBackend:      BackendLocal,
		ScanIntervalSeconds: DefaultScanInterval,
		DebounceSeconds:     DefaultDebounce,
		HashBinaries:        true,
		PruneDays:           DefaultPruneDays,
	}
}

// Load reads and validates the config file at path. A missing file is an
// error: scanning the wrong folder or reporting under the wrong machine name
// silently corrupts the fleet view, so setup must run first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s (run 'plugsync setup' first)", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.MachineName = store.SafeMachineName(cfg.MachineName)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the config for the mistakes that would corrupt the fleet
// view or leave the daemon spinning.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.MachineName) == "" {
		return fmt.Errorf("machine_name must not be empty")
	}
	if strings.TrimSpace(c.PluginsPath) == "" {
		return fmt.Errorf("plugins_path must not be empty")
	}

	switch c.ReportsBackend {
	case BackendLocal:
		if strings.TrimSpace(c.ReportsPath) == "" {
			return fmt.Errorf("reports_path is required for the local backend")
		}
	case BackendRemote:
		if strings.TrimSpace(c.RemoteEndpoint) == "" {
			return fmt.Errorf("remote_endpoint is required for the remote backend")
		}
	default:
		return fmt.Errorf("reports_backend must be %q or %q, got %q", BackendLocal, BackendRemote, c.ReportsBackend)
	}

	if c.ScanIntervalSeconds < 0 {
		return fmt.Errorf("scan_interval_seconds must not be negative")
	}
	if c.DebounceSeconds <= 0 {
		return fmt.Errorf("debounce_seconds must be positive")
	}
	if c.PruneDays < 0 {
		return fmt.Errorf("prune_days must not be negative")
	}
	return nil
}
