// Package logger provides structured logging for trainsync.
//
// Loggers are leveled, support text and JSON output, and carry
// key-value context fields.
//
// Example usage:
//
//	log := logger.New(logger.Config{
//	    Level:  "info",
//	    Output: "stderr",
//	    Format: "text",
//	})
//	log.Info("session started", "kind", "strength")
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger provides structured logging with levels and fields.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs an informational message with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error message with optional key-value pairs.
	Error(msg string, keysAndValues ...any)

	// With returns a new logger with additional context fields.
	With(keysAndValues ...any) Logger
}

// Config contains logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string

	// Output is the destination (stdout, stderr, or file path).
	Output string

	// Format is the output format (text, json).
	Format string
}

// levelNames maps config level strings to slog levels. Unlisted
// strings resolve to info.
var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// slogAdapter implements Logger on top of a slog.Logger.
type slogAdapter struct {
	base *slog.Logger
}

// New creates a logger with the given configuration.
//
// Invalid settings fall back to defaults (info level, stderr, text).
func New(cfg Config) Logger {
	return &slogAdapter{base: slog.New(newHandler(cfg))}
}

// Default returns a logger with default configuration
// (info level, stderr, text format).
func Default() Logger {
	return New(Config{})
}

// Noop returns a logger that discards all log messages.
//
// Useful for testing or when logging should be disabled.
func Noop() Logger {
	return &slogAdapter{base: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (a *slogAdapter) Debug(msg string, keysAndValues ...any) {
	a.base.Debug(msg, keysAndValues...)
}

func (a *slogAdapter) Info(msg string, keysAndValues ...any) {
	a.base.Info(msg, keysAndValues...)
}

func (a *slogAdapter) Warn(msg string, keysAndValues ...any) {
	a.base.Warn(msg, keysAndValues...)
}

func (a *slogAdapter) Error(msg string, keysAndValues ...any) {
	a.base.Error(msg, keysAndValues...)
}

// With implements Logger.With.
func (a *slogAdapter) With(keysAndValues ...any) Logger {
	return &slogAdapter{base: a.base.With(keysAndValues...)}
}

// newHandler builds the slog handler for the configured format,
// level, and destination.
func newHandler(cfg Config) slog.Handler {
	level, ok := levelNames[strings.ToLower(cfg.Level)]
	if !ok {
		level = slog.LevelInfo
	}

	writer := resolveWriter(cfg.Output)
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.NewJSONHandler(writer, opts)
	}
	return slog.NewTextHandler(writer, opts)
}

// resolveWriter maps an output name to a writer. "stdout" and
// "stderr" are the process streams; anything else is treated as a
// file path opened for appending. An unopenable path falls back to
// stderr so a bad config never silences logging.
func resolveWriter(output string) io.Writer {
	switch strings.ToLower(output) {
	case "", "stderr":
		return os.Stderr
	case "stdout":
		return os.Stdout
	}

	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // nolint:gosec
	if err != nil {
		return os.Stderr
	}
	return f
}
