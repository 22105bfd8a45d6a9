package commands

import (
	"os"
	"strings"
	"testing"

	"github.com/MEKXH/wabridge/internal/config"
	"golang.org/x/crypto/bcrypt"
)

func TestInitCommand_CreatesConfigAndDataDir(t *testing.T) {
	isolateHome(t)

	out := captureOutput(t, func() {
		if err := runInit(""); err != nil {
			t.Fatalf("runInit error: %v", err)
		}
	})

	configPath := config.ConfigPath()
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("expected config file at %s: %v", configPath, err)
	}
	cfg := config.DefaultConfig()
	if _, err := os.Stat(cfg.DataDir()); err != nil {
		t.Fatalf("expected data dir at %s: %v", cfg.DataDir(), err)
	}
	if !strings.Contains(out, "wabridge password") {
		t.Fatalf("expected password hint, got: %s", out)
	}
}

func TestInitCommand_StoresPasswordHash(t *testing.T) {
	isolateHome(t)

	captureOutput(t, func() {
		if err := runInit("hunter2"); err != nil {
			t.Fatalf("runInit error: %v", err)
		}
	})

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Password != "" {
		t.Fatal("plain password must not be stored")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cfg.Auth.PasswordHash), []byte("hunter2")); err != nil {
		t.Fatalf("stored hash does not match: %v", err)
	}
}

func TestInitCommand_KeepsExistingConfig(t *testing.T) {
	isolateHome(t)

	captureOutput(t, func() { _ = runInit("") })
	out := captureOutput(t, func() {
		if err := runInit("ignored"); err != nil {
			t.Fatalf("runInit error: %v", err)
		}
	})
	if !strings.Contains(out, "Config already exists") {
		t.Fatalf("expected existing config notice, got: %s", out)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.PasswordHash != "" {
		t.Fatal("existing config must not be rewritten")
	}
}
