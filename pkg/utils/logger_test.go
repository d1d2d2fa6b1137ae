package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestInitLoggerDefaults(t *testing.T) {
	logger := InitLogger(LogConfig{})
	if logger == nil {
		t.Fatal("InitLogger returned nil")
	}
	if logger.Sugar() == nil {
		t.Fatal("Sugar returned nil")
	}
}

func TestInitLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	logger := InitLogger(LogConfig{Level: "info", Format: "json", Output: path})

	logger.Sugar().Infow("session started", "session_id", "session_test")
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}

	line := strings.TrimSpace(string(data))
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if entry["message"] != "session started" {
		t.Errorf("unexpected message: %v", entry["message"])
	}
	if entry["session_id"] != "session_test" {
		t.Errorf("structured field lost: %v", entry["session_id"])
	}
}

func TestInitLoggerInvalidOutputFallsBack(t *testing.T) {
	// Недоступный файл не должен ронять процесс
	logger := InitLogger(LogConfig{Output: "/nonexistent-dir/bot.log"})
	if logger == nil {
		t.Fatal("expected stderr fallback, got nil")
	}
	logger.Info("still alive")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"WARN", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"", zapcore.InfoLevel},
		{"garbage", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		if result := parseLevel(tt.input); result != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}

func TestGlobalLogger(t *testing.T) {
	SetGlobalLogger(nil)

	first := GetGlobalLogger()
	if first == nil {
		t.Fatal("lazy default logger not created")
	}
	if second := GetGlobalLogger(); second != first {
		t.Error("repeated calls must return the same logger")
	}

	custom := InitGlobalLogger(LogConfig{Level: "debug"})
	if GetGlobalLogger() != custom {
		t.Error("InitGlobalLogger must replace the global logger")
	}
}

func TestWithComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "component.log")
	logger := InitLogger(LogConfig{Format: "json", Output: path})

	logger.WithComponent("engine").Info("tick")
	logger.Sync()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"component":"engine"`) {
		t.Errorf("component field missing in output: %s", data)
	}
}
