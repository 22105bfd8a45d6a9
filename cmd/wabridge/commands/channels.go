package commands

import (
	"fmt"
	"strings"

	"github.com/MEKXH/wabridge/internal/config"
	"github.com/spf13/cobra"
)

func NewChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Manage the Telegram and WhatsApp channels",
	}

	cmd.AddCommand(
		newChannelsListCmd(),
		newChannelsStartCmd(),
		newChannelsStopCmd(),
	)

	return cmd
}

func newChannelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured channels",
		RunE:  runChannelsList,
	}
}

func newChannelsStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <channel>",
		Short: "Enable a channel in config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChannelsSetEnabled(args[0], true)
		},
	}
}

func newChannelsStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <channel>",
		Short: "Disable a channel in config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChannelsSetEnabled(args[0], false)
		},
	}
}

func runChannelsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("Channels:")
	fmt.Printf("  %-12s %-10s %s\n", "NAME", "STATUS", "NOTE")
	fmt.Printf("  %-12s %-10s %s\n", strings.Repeat("-", 12), strings.Repeat("-", 10), strings.Repeat("-", 20))

	for _, state := range channelStates(cfg) {
		fmt.Printf("  %-12s %-10s %s\n", state.Name, state.Status(), state.Note())
	}

	return nil
}

func runChannelsSetEnabled(channelName string, enabled bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	name := strings.ToLower(strings.TrimSpace(channelName))
	switch name {
	case "telegram":
		cfg.Channels.Telegram.Enabled = enabled
	case "whatsapp":
		cfg.Channels.WhatsApp.Enabled = enabled
	default:
		return fmt.Errorf("unknown channel: %s", channelName)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("Channel %s %s.\n", name, state)
	return nil
}

type channelState struct {
	Name    string
	Enabled bool
	Ready   bool
	Reason  string
}

func (s channelState) Status() string {
	if s.Enabled {
		return "enabled"
	}
	return "disabled"
}

func (s channelState) Note() string {
	if !s.Enabled {
		return ""
	}
	if s.Ready {
		return "ready"
	}
	return s.Reason
}

func channelStates(cfg *config.Config) []channelState {
	tg := cfg.Channels.Telegram
	tgReason := "token not set"
	if strings.TrimSpace(tg.Token) != "" && tg.ChatID == 0 {
		tgReason = "chat_id not set"
	}
	return []channelState{
		{
			Name:    "telegram",
			Enabled: tg.Enabled,
			Ready:   strings.TrimSpace(tg.Token) != "" && tg.ChatID != 0,
			Reason:  tgReason,
		},
		{
			Name:    "whatsapp",
			Enabled: cfg.Channels.WhatsApp.Enabled,
			Ready:   strings.TrimSpace(cfg.Channels.WhatsApp.BridgeURL) != "",
			Reason:  "bridge_url not set",
		},
	}
}

func titleCase(name string) string {
	switch strings.ToLower(name) {
	case "whatsapp":
		return "WhatsApp"
	}
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
