package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized by the loader.
const (
	// EnvAPIBaseURL overrides the row-store API base URL.
	EnvAPIBaseURL = "TRAINSYNC_API_URL"

	// EnvAPIToken overrides the API bearer token.
	EnvAPIToken = "TRAINSYNC_API_TOKEN"

	// EnvUserID overrides the configured user id.
	EnvUserID = "TRAINSYNC_USER_ID"

	// EnvFeedDir overrides the sample feed directory.
	EnvFeedDir = "TRAINSYNC_FEED_DIR"

	// EnvLogLevel overrides the log level.
	EnvLogLevel = "TRAINSYNC_LOG_LEVEL"
)

// Load loads configuration from the default search locations.
//
// Equivalent to NewLoader("").Load().
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// Loader resolves configuration from files, environment, and defaults.
type Loader interface {
	// Load merges defaults, then the config file, then environment
	// overrides, and validates the result.
	Load() (*Config, error)

	// LoadFromFile reads and parses one YAML config file.
	LoadFromFile(path string) (*Config, error)
}

// loader is the default Loader.
type loader struct {
	configPath string
}

// NewLoader creates a configuration loader. An empty configPath
// searches ./trainsync.yaml and then ~/.config/trainsync/config.yaml.
func NewLoader(configPath string) Loader {
	return &loader{
		configPath: configPath,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	configPath := l.configPath
	if configPath == "" {
		configPath = l.findConfigFile()
	}

	if configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// An explicitly requested file must load; a discovered one
			// may be absent and defaults apply.
			if l.configPath != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		} else {
			cfg = mergeConfigs(cfg, fileCfg)
		}
	}

	cfg = applyEnvVars(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return &cfg, nil
}

// findConfigFile probes the standard locations and returns the first
// existing path, or empty string.
func (l *loader) findConfigFile() string {
	candidates := []string{
		"./trainsync.yaml",
		defaultConfigPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// mergeConfigs layers non-zero file values over the defaults.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.API.BaseURL != "" {
		result.API.BaseURL = override.API.BaseURL
	}
	if override.API.Token != "" {
		result.API.Token = override.API.Token
	}
	if override.API.UserID != "" {
		result.API.UserID = override.API.UserID
	}
	if override.API.Timeout > 0 {
		result.API.Timeout = override.API.Timeout
	}

	if override.Planner.WindowDays > 0 {
		result.Planner.WindowDays = override.Planner.WindowDays
	}

	if override.Feed.Dir != "" {
		result.Feed.Dir = override.Feed.Dir
	}
	if override.Feed.DebounceInterval > 0 {
		result.Feed.DebounceInterval = override.Feed.DebounceInterval
	}

	if override.Storage.DBPath != "" {
		result.Storage.DBPath = override.Storage.DBPath
	}

	if override.Display.Format != "" {
		result.Display.Format = override.Display.Format
	}
	// Bool fields cannot distinguish "false" from "unset"; the file
	// value always wins.
	result.Display.ClearScreen = override.Display.ClearScreen
	if override.Display.RefreshRate > 0 {
		result.Display.RefreshRate = override.Display.RefreshRate
	}

	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Output != "" {
		result.Logging.Output = override.Logging.Output
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}

	return &result
}

// applyEnvVars layers TRAINSYNC_* environment overrides on top.
func applyEnvVars(cfg *Config) *Config {
	result := *cfg

	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		result.API.BaseURL = v
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		result.API.Token = v
	}
	if v := os.Getenv(EnvUserID); v != "" {
		result.API.UserID = v
	}
	if v := os.Getenv(EnvFeedDir); v != "" {
		result.Feed.Dir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		result.Logging.Level = v
	}

	return &result
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8090",
			Timeout: 10 * time.Second,
		},
		Planner: PlannerConfig{
			WindowDays: 45,
		},
		Feed: FeedConfig{
			Dir:              defaultFeedDir(),
			DebounceInterval: 100 * time.Millisecond,
		},
		Storage: StorageConfig{
			DBPath: defaultDBPath(),
		},
		Display: DisplayConfig{
			Format:      "table",
			ClearScreen: true,
			RefreshRate: time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}

// defaultDBPath returns the default anchor database file path.
//
// Returns: ~/.config/trainsync/anchors.db.
func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./anchors.db"
	}

	return filepath.Join(homeDir, ".config", "trainsync", "anchors.db")
}

// defaultFeedDir returns the default sample feed directory.
//
// Returns: ~/.config/trainsync/feed.
func defaultFeedDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./feed"
	}

	return filepath.Join(homeDir, ".config", "trainsync", "feed")
}

// defaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/trainsync/config.yaml.
func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./trainsync.yaml"
	}

	return filepath.Join(homeDir, ".config", "trainsync", "config.yaml")
}
