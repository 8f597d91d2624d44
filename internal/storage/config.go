package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFaviconURL is the favicon provider template; %s receives the
// bookmark origin.
const DefaultFaviconURL = "https://t2.gstatic.com/faviconV2?client=SOCIAL&type=FAVICON&fallback_opts=TYPE,SIZE,URL&url=%s&size=64"

// FaviconConfig controls favicon fetching.
type FaviconConfig struct {
	URLTemplate string        `yaml:"url_template"`
	Timeout     time.Duration `yaml:"timeout"`
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
}

// NativeConfig names the native companion that styles folders outside the
// browser. An empty command disables it.
type NativeConfig struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig selects log verbosity and output format ("console" or "json").
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WatchConfig controls how the places file is watched.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// CheckConfig controls the link checker. 404s on hosts under
// ExcludeDomains are reported as possibly private instead of dead.
type CheckConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	Timeout        time.Duration `yaml:"timeout"`
	ExcludeDomains []string      `yaml:"exclude_domains,omitempty"`
}

// Config holds application configuration.
type Config struct {
	Database string        `yaml:"database"`
	Places   string        `yaml:"places"`
	Favicon  FaviconConfig `yaml:"favicon"`
	Native   NativeConfig  `yaml:"native"`
	Log      LogConfig     `yaml:"log"`
	Watch    WatchConfig   `yaml:"watch"`
	Check    CheckConfig   `yaml:"check"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Database: DefaultDatabasePath(),
		Favicon: FaviconConfig{
			URLTemplate: DefaultFaviconURL,
			Timeout:     10 * time.Second,
			Workers:     4,
			QueueSize:   256,
		},
		Native: NativeConfig{
			Timeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
		Check: CheckConfig{
			Concurrency: 10,
			Timeout:     10 * time.Second,
		},
	}
}

// LoadConfig reads config from the YAML file.
// Creates the file with defaults if it doesn't exist.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			config := DefaultConfig()
			// Non-fatal: return defaults even if save fails
			_ = SaveConfig(path, &config)
			return &config, nil
		}
		return nil, fmt.Errorf("storage: read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("storage: parse config: %w", err)
	}
	config.applyDefaults()

	config.Database = expandHome(config.Database)
	config.Places = expandHome(config.Places)
	config.Native.Command = expandHome(config.Native.Command)

	return &config, nil
}

// applyDefaults fills in missing fields.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Database == "" {
		c.Database = defaults.Database
	}
	if c.Favicon.URLTemplate == "" {
		c.Favicon.URLTemplate = defaults.Favicon.URLTemplate
	}
	if c.Favicon.Timeout <= 0 {
		c.Favicon.Timeout = defaults.Favicon.Timeout
	}
	if c.Favicon.Workers <= 0 {
		c.Favicon.Workers = defaults.Favicon.Workers
	}
	if c.Favicon.QueueSize <= 0 {
		c.Favicon.QueueSize = defaults.Favicon.QueueSize
	}
	if c.Native.Timeout <= 0 {
		c.Native.Timeout = defaults.Native.Timeout
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = defaults.Watch.Debounce
	}
	if c.Check.Concurrency <= 0 {
		c.Check.Concurrency = defaults.Check.Concurrency
	}
	if c.Check.Timeout <= 0 {
		c.Check.Timeout = defaults.Check.Timeout
	}
}

// SaveConfig writes config to the YAML file.
// Creates the directory if it doesn't exist.
func SaveConfig(path string, config *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: create config dir: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("storage: marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storage: write config: %w", err)
	}
	return nil
}

// ConfigDir returns the XDG config directory for bmsync.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "bmsync")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "bmsync")
}

// DefaultConfigFilePath returns the default config path:
// ~/.config/bmsync/config.yaml
func DefaultConfigFilePath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
