// Package config loads settings from an optional YAML file with environment
// overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ameline/snipvault/internal/persist"
)

// Env variable names.
const (
	EnvPort      = "PORT"
	EnvDataDir   = "SNIPVAULT_DATA_DIR"
	EnvRemoteURL = "SNIPVAULT_REMOTE_URL"
)

// Persistence tunes the background saver. Durations are in milliseconds to
// keep the YAML plain.
type Persistence struct {
	Enabled        bool     `yaml:"enabled"`
	DebounceMs     int      `yaml:"debounceMs"`
	Logging        bool     `yaml:"logging"`
	Actions        []string `yaml:"actions"`
	RetryOnFailure bool     `yaml:"retryOnFailure"`
	MaxRetries     int      `yaml:"maxRetries"`
	RetryDelayMs   int      `yaml:"retryDelayMs"`
}

// Config is the full process configuration.
type Config struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"dataDir"`

	// RemoteURL, when set, pins the remote backend and locks the storage
	// configuration. Usually supplied via SNIPVAULT_REMOTE_URL rather than
	// the file.
	RemoteURL string `yaml:"remoteUrl"`

	Persistence Persistence `yaml:"persistence"`
}

// Default returns the built-in configuration.
func Default() Config {
	opts := persist.DefaultOptions()
	return Config{
		Port:    5000,
		DataDir: "data",
		Persistence: Persistence{
			Enabled:        opts.Enabled,
			DebounceMs:     int(opts.Debounce / time.Millisecond),
			Logging:        opts.Logging,
			Actions:        opts.Actions,
			RetryOnFailure: opts.RetryOnFailure,
			MaxRetries:     opts.MaxRetries,
			RetryDelayMs:   int(opts.RetryDelay / time.Millisecond),
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty; a missing file is an error), then env overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		// Unmarshal over the defaults: fields absent from the file keep
		// their default values.
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid %s %q: %w", EnvPort, v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvRemoteURL); v != "" {
		cfg.RemoteURL = v
	}

	return cfg, nil
}

// PersistOptions converts the persistence section for the saver.
func (c Config) PersistOptions() persist.Options {
	return persist.Options{
		Enabled:        c.Persistence.Enabled,
		Debounce:       time.Duration(c.Persistence.DebounceMs) * time.Millisecond,
		Logging:        c.Persistence.Logging,
		Actions:        c.Persistence.Actions,
		RetryOnFailure: c.Persistence.RetryOnFailure,
		MaxRetries:     c.Persistence.MaxRetries,
		RetryDelay:     time.Duration(c.Persistence.RetryDelayMs) * time.Millisecond,
	}
}
