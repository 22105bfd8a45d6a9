package command

import (
	"context"
	"fmt"
	"log/slog"
)

// SyncCommand implements /sync, which pulls the contact list from WhatsApp.
type SyncCommand struct{}

func (c *SyncCommand) Kind() Kind          { return KindSync }
func (c *SyncCommand) Usage() string       { return "/sync" }
func (c *SyncCommand) Description() string { return "Sync WhatsApp contacts" }

func (c *SyncCommand) Execute(ctx context.Context, _ []string, env Env) error {
	if env.WhatsApp == nil {
		return env.send(ctx, fmt.Sprintf("❌ Sync failed: %v", errNoWhatsApp))
	}

	messageID, err := env.Out.SendMessage(ctx, env.ChatID, "🔄 Syncing WhatsApp contacts...", nil)
	if err != nil {
		return err
	}

	list, err := env.WhatsApp.FetchContacts(ctx)
	if err != nil {
		slog.Error("fetch whatsapp contacts failed", "error", err)
		_, err = env.reply(ctx, messageID, fmt.Sprintf("❌ Sync failed: %v", err), nil)
		return err
	}

	changed, err := env.Contacts.Merge(ctx, list)
	if err != nil {
		slog.Error("store synced contacts failed", "error", err)
		_, err = env.reply(ctx, messageID, fmt.Sprintf("❌ Sync failed: %v", err), nil)
		return err
	}

	slog.Info("contacts synced", "received", len(list), "changed", changed, "total", env.Contacts.Len())
	_, err = env.reply(ctx, messageID, fmt.Sprintf("✅ Synced %d contacts (%d new or updated)\n📞 Total: %d",
		len(list), changed, env.Contacts.Len()), nil)
	return err
}
