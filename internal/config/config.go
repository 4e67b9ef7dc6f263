// Package config loads the application's TOML configuration and watches
// files for changes so rules and settings can hot-reload.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/caseworks/internal/engine/history"
)

// ErrInvalidConfig is wrapped by Load and Validate for any rejected
// configuration value.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the whole application configuration.
type Config struct {
	Session SessionConfig `toml:"session"`
	Catalog CatalogConfig `toml:"catalog"`
	Rules   RulesConfig   `toml:"rules"`
	UI      UIConfig      `toml:"ui"`
	Log     LogConfig     `toml:"log"`
}

// SessionConfig tunes the editing session.
type SessionConfig struct {
	// HistoryCapacity bounds how many versions the session retains.
	HistoryCapacity int `toml:"history_capacity"`
	// DefaultAction labels edits committed without a name.
	DefaultAction string `toml:"default_action"`
}

// CatalogConfig locates the cabinet template catalog.
type CatalogConfig struct {
	Path string `toml:"path"`
}

// RulesConfig locates user rule scripts.
type RulesConfig struct {
	Dir     string `toml:"dir"`
	Enabled bool   `toml:"enabled"`
}

// UIConfig tunes the terminal UI.
type UIConfig struct {
	Theme          string `toml:"theme"`
	ShowTimestamps bool   `toml:"show_timestamps"`
}

// LogConfig tunes application logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			HistoryCapacity: history.DefaultCapacity,
			DefaultAction:   history.DefaultLabel,
		},
		Rules: RulesConfig{Enabled: true},
		UI:    UIConfig{Theme: "dark", ShowTimestamps: true},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads the configuration at path, merged over the defaults. A missing
// file is not an error; the defaults apply until the user writes one.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, fmt.Errorf("%w: %s:%d:%d: %s", ErrInvalidConfig, path, row, col, decodeErr.Error())
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the application cannot run with.
func (c *Config) Validate() error {
	if c.Session.HistoryCapacity < 1 {
		return fmt.Errorf("%w: session.history_capacity %d, want >= 1",
			ErrInvalidConfig, c.Session.HistoryCapacity)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q, want debug, info, warn, or error",
			ErrInvalidConfig, c.Log.Level)
	}
	switch c.UI.Theme {
	case "dark", "light":
	default:
		return fmt.Errorf("%w: ui.theme %q, want dark or light", ErrInvalidConfig, c.UI.Theme)
	}
	return nil
}
