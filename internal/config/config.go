// Package config loads and persists application settings from a JSON file,
// with environment variable overrides under the CLIPVAULT_ prefix.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	DefaultMaxItems = 1000
	DefaultHotkey   = "ctrl+shift+v"
	DefaultTheme    = "light"

	minItems = 1
	maxItems = 10000
)

// Config holds user-facing settings. Unknown keys in the file are ignored;
// missing keys fall back to defaults.
type Config struct {
	AutoStart     bool   `mapstructure:"auto_start" json:"auto_start"`
	Hotkey        string `mapstructure:"hotkey" json:"hotkey"`
	MaxItems      int    `mapstructure:"max_items" json:"max_items"`
	CaptureText   bool   `mapstructure:"capture_text" json:"capture_text"`
	CaptureImages bool   `mapstructure:"capture_images" json:"capture_images"`
	CaptureLinks  bool   `mapstructure:"capture_links" json:"capture_links"`
	Theme         string `mapstructure:"theme" json:"theme"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		AutoStart:     false,
		Hotkey:        DefaultHotkey,
		MaxItems:      DefaultMaxItems,
		CaptureText:   true,
		CaptureImages: true,
		CaptureLinks:  true,
		Theme:         DefaultTheme,
	}
}

// DefaultDir returns the per-user data directory (database, images, config).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".clipvault"
	}
	return filepath.Join(home, ".clipvault")
}

// Paths derived from a base directory.
func DBPath(baseDir string) string     { return filepath.Join(baseDir, "clipboard.db") }
func ImageDir(baseDir string) string   { return filepath.Join(baseDir, "images") }
func ConfigPath(baseDir string) string { return filepath.Join(baseDir, "config.json") }

// Load reads configuration from path. Missing, malformed, or invalid files
// all degrade to defaults rather than failing: a broken config must never
// keep the daemon from starting. Environment variables such as
// CLIPVAULT_MAX_ITEMS override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("clipvault")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("auto_start", def.AutoStart)
	v.SetDefault("hotkey", def.Hotkey)
	v.SetDefault("max_items", def.MaxItems)
	v.SetDefault("capture_text", def.CaptureText)
	v.SetDefault("capture_images", def.CaptureImages)
	v.SetDefault("capture_links", def.CaptureLinks)
	v.SetDefault("theme", def.Theme)

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				slog.Warn("config file unreadable, using defaults", "path", path, "err", err)
				return def, nil
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Warn("config file malformed, using defaults", "path", path, "err", err)
		return def, nil
	}

	if err := cfg.Validate(); err != nil {
		slog.Warn("config values invalid, using defaults", "path", path, "err", err)
		return def, nil
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.MaxItems < minItems || c.MaxItems > maxItems {
		return fmt.Errorf("max_items must be between %d and %d, got %d", minItems, maxItems, c.MaxItems)
	}
	if c.Theme != "light" && c.Theme != "dark" {
		return fmt.Errorf("theme must be %q or %q, got %q", "light", "dark", c.Theme)
	}
	if c.Hotkey == "" {
		return fmt.Errorf("hotkey must not be empty")
	}
	return nil
}

// Save writes the configuration as JSON to path, creating parent directories
// as needed.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.Set("auto_start", c.AutoStart)
	v.Set("hotkey", c.Hotkey)
	v.Set("max_items", c.MaxItems)
	v.Set("capture_text", c.CaptureText)
	v.Set("capture_images", c.CaptureImages)
	v.Set("capture_links", c.CaptureLinks)
	v.Set("theme", c.Theme)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
