package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tagscout/internal/suggest"
)

// FieldThreshold tunes one field: below LookupBelow local weight an external
// lookup is attempted; below Floor a candidate is discarded.
type FieldThreshold struct {
	LookupBelow float64 `yaml:"lookup_below"`
	Floor       float64 `yaml:"floor"`
}

// Config contains the program configuration. Durations are plain integers
// (yaml.v3 has no native time.Duration support); use the accessor methods.
type Config struct {
	Verbose bool `yaml:"verbose"`

	// Fields to suggest when the caller does not name any.
	Fields []string `yaml:"fields"`

	// Per-field threshold overrides, keyed by field name.
	Thresholds map[string]FieldThreshold `yaml:"thresholds"`

	// External lookup service settings.
	LookupEnabled     bool   `yaml:"lookup_enabled"`
	UserAgent         string `yaml:"user_agent"`
	MinIntervalMillis int    `yaml:"min_interval_millis"`
	BackoffBaseMillis int    `yaml:"backoff_base_millis"`
	BackoffMaxMillis  int    `yaml:"backoff_max_millis"`
	LookupAttempts    int    `yaml:"lookup_attempts"`
	LookupTimeoutSecs int    `yaml:"lookup_timeout_seconds"`

	// Result cache settings. An empty CachePath keeps the cache in memory only.
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes"`
	CachePath       string `yaml:"cache_path"`

	// Web server settings.
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Fields:            []string{"title", "artist", "album", "track"},
		LookupEnabled:     true,
		UserAgent:         "tagscout/1.0 (https://github.com/tagscout)",
		MinIntervalMillis: 1100, // MusicBrainz allows 1 req/s; leave headroom
		BackoffBaseMillis: 2000,
		BackoffMaxMillis:  30000,
		LookupAttempts:    4,
		LookupTimeoutSecs: 15,
		CacheTTLMinutes:   24 * 60,
		CachePath:         filepath.Join(homeDir(), ".cache", "tagscout", "lookups.json"),
		ListenAddr:        "127.0.0.1:8765",
	}
}

// LoadConfigFile loads configuration from a YAML file.
// If path is empty, searches standard locations. Returns defaults if no file found.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.CachePath = ExpandHome(cfg.CachePath)

	return cfg, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := homeDir()
	locations := []string{
		"./tagscout.yaml",
		"./tagscout.yml",
		filepath.Join(home, ".config", "tagscout", "config.yaml"),
		filepath.Join(home, ".config", "tagscout", "config.yml"),
		filepath.Join(home, ".tagscout.yaml"),
		filepath.Join(home, ".tagscout.yml"),
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// SaveConfigFile saves the current configuration to a YAML file
func SaveConfigFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	return filepath.Join(homeDir(), ".config", "tagscout", "config.yaml")
}

// GetDefaultLogPath returns the default log directory path
func GetDefaultLogPath() string {
	return filepath.Join(homeDir(), ".local", "share", "tagscout", "logs")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// MinInterval returns the minimum spacing between external lookup calls.
func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMillis) * time.Millisecond
}

// BackoffBase returns the first retry delay after a rate-limit response.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMillis) * time.Millisecond
}

// BackoffMax returns the cap on the exponential backoff schedule.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMillis) * time.Millisecond
}

// LookupTimeout returns the bound on a single external lookup.
func (c *Config) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutSecs) * time.Second
}

// CacheTTL returns how long a cached lookup result stays valid.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// SuggestThresholds converts the per-field overrides into the engine's
// threshold table.
func (c *Config) SuggestThresholds() suggest.Thresholds {
	t := make(suggest.Thresholds, len(c.Thresholds))
	for name, th := range c.Thresholds {
		field, ok := suggest.ParseField(name)
		if !ok {
			continue
		}
		t[field] = suggest.FieldThreshold{LookupBelow: th.LookupBelow, Floor: th.Floor}
	}
	return t
}

// SuggestFields resolves the configured default field names.
func (c *Config) SuggestFields() []suggest.Field {
	var fields []suggest.Field
	for _, name := range c.Fields {
		if f, ok := suggest.ParseField(name); ok {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		fields = []suggest.Field{suggest.FieldTitle, suggest.FieldArtist, suggest.FieldAlbum, suggest.FieldTrack}
	}
	return fields
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	for name, th := range c.Thresholds {
		if _, ok := suggest.ParseField(name); !ok {
			return fmt.Errorf("unknown field %q in thresholds", name)
		}
		if th.LookupBelow < 0 || th.LookupBelow > 1 {
			return fmt.Errorf("thresholds.%s.lookup_below must be between 0.0 and 1.0, got %.2f", name, th.LookupBelow)
		}
		if th.Floor < 0 || th.Floor > 1 {
			return fmt.Errorf("thresholds.%s.floor must be between 0.0 and 1.0, got %.2f", name, th.Floor)
		}
	}

	for _, name := range c.Fields {
		if _, ok := suggest.ParseField(name); !ok {
			return fmt.Errorf("unknown field %q in fields", name)
		}
	}

	if c.LookupEnabled {
		if c.UserAgent == "" {
			return fmt.Errorf("user_agent is required when lookup is enabled")
		}
		if c.MinIntervalMillis < 0 {
			return fmt.Errorf("min_interval_millis cannot be negative, got %d", c.MinIntervalMillis)
		}
		if c.LookupAttempts < 1 {
			return fmt.Errorf("lookup_attempts must be at least 1, got %d", c.LookupAttempts)
		}
		if c.BackoffMaxMillis < c.BackoffBaseMillis {
			return fmt.Errorf("backoff_max_millis (%d) cannot be below backoff_base_millis (%d)",
				c.BackoffMaxMillis, c.BackoffBaseMillis)
		}
	}

	if c.CacheTTLMinutes < 0 {
		return fmt.Errorf("cache_ttl_minutes cannot be negative, got %d", c.CacheTTLMinutes)
	}

	return nil
}
