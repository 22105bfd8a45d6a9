package command

import (
	"context"
	"fmt"
	"strings"
)

// StatusCommand implements /status, a bridge status summary.
type StatusCommand struct{}

func (c *StatusCommand) Kind() Kind          { return KindStatus }
func (c *StatusCommand) Usage() string       { return "/status" }
func (c *StatusCommand) Description() string { return "Show bridge status" }

func (c *StatusCommand) Execute(ctx context.Context, _ []string, env Env) error {
	connected, userName := false, ""
	if env.WhatsApp != nil {
		connected, userName = env.WhatsApp.Status()
	}
	if strings.TrimSpace(userName) == "" {
		userName = "Unknown"
	}

	var chats, users, known int
	if env.Mappings != nil {
		chats, users = env.Mappings.ChatCount(), env.Mappings.UserCount()
	}
	if env.Contacts != nil {
		known = env.Contacts.Len()
	}

	var sb strings.Builder
	sb.WriteString("📊 *Bridge Status*\n\n")
	if connected {
		sb.WriteString("🔗 WhatsApp: ✅ Connected\n")
	} else {
		sb.WriteString("🔗 WhatsApp: ❌ Disconnected\n")
	}
	sb.WriteString(fmt.Sprintf("👤 User: %s\n", userName))
	sb.WriteString(fmt.Sprintf("💬 Chats: %d\n", chats))
	sb.WriteString(fmt.Sprintf("👥 Users: %d\n", users))
	sb.WriteString(fmt.Sprintf("📞 Contacts: %d", known))

	if env.Metrics != nil {
		snap := env.Metrics.Snapshot()
		if snap.HasData() {
			sb.WriteString(fmt.Sprintf("\n⚙️ Commands: %d handled, %d failed", snap.Command.Total, snap.Command.Errors))
			sb.WriteString(fmt.Sprintf("\n📨 Forwarded: %d, filtered: %d", snap.Channel.Forwarded, snap.Channel.Filtered))
		}
	}
	return env.send(ctx, sb.String())
}
