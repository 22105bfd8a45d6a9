package commands

import (
	"github.com/MEKXH/wabridge/internal/config"
	"github.com/spf13/cobra"
)

var logLevelOverride string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wabridge",
		Short: "wabridge - Telegram control panel for a WhatsApp account",
		Long:  `wabridge forwards WhatsApp messages to a Telegram chat and lets its owner browse contacts and reply from Telegram.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" || cmd.Name() == "version" {
				return configureLogger(config.DefaultConfig(), logLevelOverride)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return configureLogger(cfg, logLevelOverride)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewInitCmd(),
		NewRunCmd(),
		NewStatusCmd(),
		NewChannelsCmd(),
		NewPasswordCmd(),
		NewVersionCmd(),
	)

	return cmd
}
