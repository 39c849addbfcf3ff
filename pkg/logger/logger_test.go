package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{
			name: "default config",
			config: Config{
				Level:  "info",
				Output: "stderr",
				Format: "text",
			},
		},
		{
			name: "debug level",
			config: Config{
				Level:  "debug",
				Output: "stderr",
				Format: "text",
			},
		},
		{
			name: "json format",
			config: Config{
				Level:  "info",
				Output: "stderr",
				Format: "json",
			},
		},
		{
			name: "stdout output",
			config: Config{
				Level:  "info",
				Output: "stdout",
				Format: "text",
			},
		},
		{
			name:   "empty config falls back to defaults",
			config: Config{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if log := New(tt.config); log == nil {
				t.Error("New() returned nil")
			}
		})
	}
}

func TestLogLevels(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	log := New(Config{
		Level:  "debug",
		Output: logFile,
		Format: "text",
	})

	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")
	log.Error("error message")

	data, err := os.ReadFile(logFile) // nolint:gosec
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	content := string(data)
	for _, want := range []string{"debug message", "info message", "warn message", "error message"} {
		if !strings.Contains(content, want) {
			t.Errorf("%q not found in log", want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	log := New(Config{
		Level:  "warn",
		Output: logFile,
		Format: "text",
	})

	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")

	data, err := os.ReadFile(logFile) // nolint:gosec
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	content := string(data)
	if strings.Contains(content, "debug message") || strings.Contains(content, "info message") {
		t.Errorf("messages below warn were not filtered:\n%s", content)
	}
	if !strings.Contains(content, "warn message") {
		t.Error("warn message not found in log")
	}
}

func TestJSONFormat(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	log := New(Config{
		Level:  "info",
		Output: logFile,
		Format: "json",
	})

	log.Info("session started", "kind", "strength", "sets", 4)

	data, err := os.ReadFile(logFile) // nolint:gosec
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if entry["msg"] != "session started" {
		t.Errorf("msg = %v, want session started", entry["msg"])
	}
	if entry["kind"] != "strength" {
		t.Errorf("kind = %v, want strength", entry["kind"])
	}
}

func TestWith(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	log := New(Config{
		Level:  "info",
		Output: logFile,
		Format: "json",
	})

	scoped := log.With("session_id", "sess-1")
	scoped.Info("item added")

	data, err := os.ReadFile(logFile) // nolint:gosec
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want sess-1", entry["session_id"])
	}
}

func TestNoop(t *testing.T) {
	log := Noop()

	// Must not panic or write anywhere.
	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Error("error")
	log.With("k", "v").Info("scoped")
}
