package commands

import (
	"fmt"
	"os"

	"github.com/MEKXH/wabridge/internal/auth"
	"github.com/MEKXH/wabridge/internal/config"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize wabridge configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(password)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Bot password, stored as a bcrypt hash")
	return cmd
}

func runInit(password string) error {
	configPath := config.ConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return nil
	}

	cfg := config.DefaultConfig()
	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		cfg.Auth.PasswordHash = hash
	}

	dirs := []string{
		config.ConfigDir(),
		cfg.DataDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("wabridge initialized!\n")
	fmt.Printf("Config: %s\n", configPath)
	fmt.Printf("Data: %s\n", cfg.DataDir())
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("1. Edit %s to add your Telegram bot token and chat id\n", configPath)
	if password == "" {
		fmt.Printf("2. Set a bot password with 'wabridge password <secret>'\n")
	} else {
		fmt.Printf("2. Password hash saved\n")
	}
	fmt.Printf("3. Run 'wabridge run' to start the bridge\n")

	return nil
}
