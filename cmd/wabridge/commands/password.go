package commands

import (
	"fmt"
	"strings"

	"github.com/MEKXH/wabridge/internal/auth"
	"github.com/MEKXH/wabridge/internal/config"
	"github.com/spf13/cobra"
)

// NewPasswordCmd stores a new bot password as a bcrypt hash.
func NewPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "password <secret>",
		Short: "Set the Telegram bot password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetPassword(args[0])
		},
	}
}

func runSetPassword(secret string) error {
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("password must not be empty")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	hash, err := auth.HashPassword(secret)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	cfg.Auth.PasswordHash = hash
	cfg.Auth.Password = ""

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Println("Password updated. Users authenticated before keep their access.")
	return nil
}
