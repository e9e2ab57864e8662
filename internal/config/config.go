// Package config loads Beach's layered configuration: built-in defaults,
// then ~/.config/beach/config.yaml, then environment variables, then CLI
// flags, each layer overriding the last (spec §6).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/beach-sh/beach/internal/beacherr"
)

// Config is Beach's fully resolved runtime configuration.
type Config struct {
	SessionServer string `yaml:"session_server"`
	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	LogFilter     string `yaml:"log_filter"`
	Profile       bool   `yaml:"profile"`
	HistoryLimit  uint64 `yaml:"history_limit"`
}

// Defaults returns Beach's built-in configuration before any file, env,
// or flag overrides are applied.
func Defaults() Config {
	return Config{
		SessionServer: "https://signal.beach.sh",
		LogLevel:      "info",
		HistoryLimit:  100_000,
	}
}

// DefaultPath returns ~/.config/beach/config.yaml, the path the fsnotify
// watcher and Load both use by default.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "beach", "config.yaml"), nil
}

// Load applies the file and environment layers on top of Defaults. CLI
// flag overrides are applied by the caller afterward (the cli package
// copies its cobra flag variables onto the returned Config), since flag
// parsing naturally happens after this is called.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BEACH_SESSION_SERVER"); v != "" {
		cfg.SessionServer = v
	}
	if v := os.Getenv("BEACH_LOG_FILTER"); v != "" {
		cfg.LogFilter = v
	}
	if v := os.Getenv("BEACH_PROFILE"); v != "" {
		cfg.Profile = v == "1" || v == "true"
	}
}

// Validate rejects a configuration that cannot possibly produce a
// working session, surfaced via beacherr.KindConfigInvalid.
func Validate(cfg Config) error {
	if cfg.SessionServer == "" {
		return fmt.Errorf("session_server must not be empty: %w", beacherr.KindConfigInvalid)
	}
	switch cfg.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not recognized: %w", cfg.LogLevel, beacherr.KindConfigInvalid)
	}
	return nil
}
