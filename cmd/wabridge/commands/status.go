package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/MEKXH/wabridge/internal/config"
	"github.com/MEKXH/wabridge/internal/contacts"
	"github.com/MEKXH/wabridge/internal/metrics"
	"github.com/MEKXH/wabridge/internal/state"
)

var (
	statusHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FAFAFA")).
				Background(lipgloss.Color("#25D366")).
				Padding(0, 1)
	statusSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#229ED9")).
				MarginTop(1)
	statusLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Width(12)
	statusOKStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#2E8B57"))
	statusWarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#D9822B"))
	statusOffStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show wabridge configuration status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println(statusHeaderStyle.Render("wabridge Status"))

	section("Config")
	configStatus := statusOKStyle.Render("OK")
	if _, err := os.Stat(config.ConfigPath()); err != nil {
		configStatus = statusWarnStyle.Render("not found (run 'wabridge init')")
	}
	row("Path:", config.ConfigPath())
	row("Status:", configStatus)
	row("Log level:", cfg.Log.Level)

	section("Auth")
	switch {
	case strings.TrimSpace(cfg.Auth.PasswordHash) != "":
		row("Password:", statusOKStyle.Render("bcrypt hash"))
	case cfg.Auth.Password != "":
		row("Password:", statusWarnStyle.Render("plain text (run 'wabridge password')"))
	default:
		row("Password:", statusWarnStyle.Render("not set"))
	}

	section("Channels")
	for _, s := range channelStates(cfg) {
		line := statusOffStyle.Render("disabled")
		if s.Enabled {
			if s.Ready {
				line = statusOKStyle.Render("enabled (ready)")
			} else {
				line = statusWarnStyle.Render("enabled (" + s.Reason + ")")
			}
		}
		row(titleCase(s.Name)+":", line)
	}
	if cfg.Channels.Telegram.ChatID != 0 {
		row("Forward to:", fmt.Sprintf("%d", cfg.Channels.Telegram.ChatID))
	}

	section("Gateway")
	if cfg.Gateway.Enabled {
		row("Address:", fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port))
	} else {
		row("Address:", statusOffStyle.Render("disabled"))
	}
	if cfg.Gateway.Token != "" {
		row("Auth:", "token configured")
	} else {
		row("Auth:", "no token (open)")
	}

	dataDir := cfg.DataDir()
	section("Storage")
	row("Data dir:", dataDir)
	row("Contacts:", contactSummary(dataDir))
	row("Filters:", filterSummary(dataDir))
	row("Pages:", fmt.Sprintf("%d contacts, %d search results", cfg.Pagination.ContactsPerPage, cfg.Pagination.SearchPerPage))

	section("Runtime Metrics")
	snap, err := metrics.ReadRuntimeSnapshot(dataDir)
	switch {
	case err != nil:
		row("Status:", statusWarnStyle.Render("unavailable: "+err.Error()))
	case !snap.HasData():
		row("Status:", statusOffStyle.Render("no runtime data yet"))
	default:
		row("Commands:", fmt.Sprintf("%d total, %d errors (%.1f%%)", snap.Command.Total, snap.Command.Errors, snap.Command.ErrorRatio()*100))
		row("Latency:", fmt.Sprintf("avg %.0fms, p95~%dms, max %dms", snap.Command.AvgLatencyMs(), snap.Command.P95ProxyLatencyMs, snap.Command.MaxLatencyMs))
		row("Sends:", fmt.Sprintf("%d attempts, %d failures (%.1f%%)", snap.Channel.SendAttempts, snap.Channel.SendFailures, snap.Channel.FailureRatio()*100))
		row("Forwarded:", fmt.Sprintf("%d forwarded, %d filtered", snap.Channel.Forwarded, snap.Channel.Filtered))
		if !snap.UpdatedAt.IsZero() {
			row("Updated:", snap.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}

func section(title string) {
	fmt.Println(statusSectionStyle.Render(title))
}

func row(label, value string) {
	fmt.Printf("  %s %s\n", statusLabelStyle.Render(label), value)
}

func contactSummary(dataDir string) string {
	path := filepath.Join(dataDir, contactsDBName)
	if _, err := os.Stat(path); err != nil {
		return "none synced yet"
	}
	store, err := contacts.OpenSQLiteStore(path)
	if err != nil {
		return "unavailable: " + err.Error()
	}
	defer store.Close()
	list, err := store.Load(context.Background())
	if err != nil {
		return "unavailable: " + err.Error()
	}
	return fmt.Sprintf("%d stored", len(list))
}

func filterSummary(dataDir string) string {
	st := state.NewManager(dataDir)
	if err := st.Load(); err != nil {
		return "unavailable: " + err.Error()
	}
	words := st.Filters()
	if len(words) == 0 {
		return "none"
	}
	return strings.Join(words, ", ")
}
