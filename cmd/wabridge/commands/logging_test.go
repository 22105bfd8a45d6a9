package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/MEKXH/wabridge/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		config, override string
		want             slog.Level
	}{
		{"", "", slog.LevelInfo},
		{"debug", "", slog.LevelDebug},
		{"info", "warning", slog.LevelWarn},
		{"ERROR", "", slog.LevelError},
	}
	for _, tc := range cases {
		got, err := parseLogLevel(tc.config, tc.override)
		if err != nil {
			t.Fatalf("parseLogLevel(%q, %q): %v", tc.config, tc.override, err)
		}
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q, %q) = %v, want %v", tc.config, tc.override, got, tc.want)
		}
	}

	if _, err := parseLogLevel("loud", ""); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestConfigureLogger_WritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "wabridge.log")
	cfg := config.DefaultConfig()
	cfg.Log.File = logPath

	if err := configureLogger(cfg, "debug"); err != nil {
		t.Fatalf("configureLogger: %v", err)
	}
	t.Cleanup(func() {
		_ = configureLogger(config.DefaultConfig(), "")
	})

	slog.Debug("file logging works")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log output in file")
	}
}
