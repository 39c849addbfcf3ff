// Package config provides configuration management for trainsync.
//
// Configuration is loaded with the following precedence:
// 1. Environment variables
// 2. Configuration file
// 3. Default values
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("API base URL: %s\n", cfg.API.BaseURL)
package config

import (
	"time"
)

// Config represents the complete application configuration.
//
// Invariants:
// - API.BaseURL must be set
// - API.Timeout must be > 0
// - Planner.WindowDays must be > 0
// - Feed.DebounceInterval must be > 0
// - Display.RefreshRate must be > 0.
type Config struct {
	// Remote row-store API settings
	API APIConfig `yaml:"api"`

	// Planned-session calendar settings
	Planner PlannerConfig `yaml:"planner"`

	// Biometric sample feed settings
	Feed FeedConfig `yaml:"feed"`

	// Local storage settings
	Storage StorageConfig `yaml:"storage"`

	// Display settings
	Display DisplayConfig `yaml:"display"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig contains settings for the remote persistence service.
type APIConfig struct {
	// Base URL of the row-store API
	BaseURL string `yaml:"base_url"`

	// Bearer token used for authentication
	Token string `yaml:"token"`

	// Identifier of the authenticated user; row writes are scoped
	// to it
	UserID string `yaml:"user_id"`

	// Per-request timeout
	Timeout time.Duration `yaml:"timeout"`
}

// PlannerConfig contains planned-session calendar settings.
type PlannerConfig struct {
	// Half-width of the load window in days (load covers ±WindowDays)
	WindowDays int `yaml:"window_days"`
}

// FeedConfig contains settings for the sample feed directory.
type FeedConfig struct {
	// Directory containing per-metric JSONL feed files
	Dir string `yaml:"dir"`

	// Debounce interval for feed file change events
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// StorageConfig contains local storage settings.
type StorageConfig struct {
	// Path to the BoltDB file holding sample anchors
	DBPath string `yaml:"db_path"`
}

// DisplayConfig contains display-related settings.
type DisplayConfig struct {
	// Default output format (table, json, simple)
	Format string `yaml:"format"`

	// Enable clearing the terminal between live updates
	ClearScreen bool `yaml:"clear_screen"`

	// Live view refresh rate
	RefreshRate time.Duration `yaml:"refresh_rate"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Returns an error if any invariant is violated.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return ErrNoBaseURL
	}
	if c.API.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Planner.WindowDays <= 0 {
		return ErrInvalidWindow
	}

	if c.Feed.DebounceInterval <= 0 {
		return ErrInvalidDebounce
	}

	validFormats := map[string]bool{
		"table":  true,
		"json":   true,
		"simple": true,
	}
	if !validFormats[c.Display.Format] {
		return ErrInvalidDisplayFormat
	}
	if c.Display.RefreshRate <= 0 {
		return ErrInvalidRefreshRate
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}
