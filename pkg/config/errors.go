package config

import "errors"

// Validation errors returned by Config.Validate.
var (
	// ErrNoBaseURL is returned when no API base URL is configured.
	ErrNoBaseURL = errors.New("no API base URL configured")

	// ErrInvalidTimeout is returned when the API timeout is not positive.
	ErrInvalidTimeout = errors.New("API timeout must be positive")

	// ErrInvalidWindow is returned when the planner window is not positive.
	ErrInvalidWindow = errors.New("planner window days must be positive")

	// ErrInvalidDebounce is returned when the feed debounce interval is not positive.
	ErrInvalidDebounce = errors.New("feed debounce interval must be positive")

	// ErrInvalidDisplayFormat is returned for an unknown display format.
	ErrInvalidDisplayFormat = errors.New("invalid display format")

	// ErrInvalidRefreshRate is returned when the refresh rate is not positive.
	ErrInvalidRefreshRate = errors.New("display refresh rate must be positive")

	// ErrInvalidLogLevel is returned for an unknown log level.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidLogFormat is returned for an unknown log format.
	ErrInvalidLogFormat = errors.New("invalid log format")

	// ErrConfigNotFound is returned when the config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when the config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
