package commands

import (
	"testing"

	"github.com/MEKXH/wabridge/internal/config"
	"golang.org/x/crypto/bcrypt"
)

func TestSetPassword_ReplacesPlainPassword(t *testing.T) {
	isolateHome(t)

	cfg := config.DefaultConfig()
	cfg.Auth.Password = "old"
	if err := config.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	captureOutput(t, func() {
		if err := runSetPassword("new-secret"); err != nil {
			t.Fatalf("runSetPassword: %v", err)
		}
	})

	got, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Auth.Password != "" {
		t.Fatalf("plain password should be cleared, got %q", got.Auth.Password)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(got.Auth.PasswordHash), []byte("new-secret")); err != nil {
		t.Fatalf("hash mismatch: %v", err)
	}
}

func TestSetPassword_RejectsBlank(t *testing.T) {
	isolateHome(t)

	if err := runSetPassword("   "); err == nil {
		t.Fatal("expected error for blank password")
	}
}
