package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/MEKXH/wabridge/internal/contacts"
)

var phoneRe = regexp.MustCompile(`^\d{6,15}$`)

var errNoWhatsApp = errors.New("whatsapp client not configured")

// SendCommand implements /send and sends a WhatsApp text to a phone number.
type SendCommand struct{}

func (c *SendCommand) Kind() Kind          { return KindSend }
func (c *SendCommand) Usage() string       { return "/send <number> <msg>" }
func (c *SendCommand) Description() string { return "Send WhatsApp message" }

func (c *SendCommand) Execute(ctx context.Context, args []string, env Env) error {
	if len(args) < 2 {
		return env.send(ctx, "❌ Usage: /send <number> <message>\nExample: /send 1234567890 Hello!")
	}

	number := contacts.NormalizePhone(args[0])
	text := strings.Join(args[1:], " ")
	if !phoneRe.MatchString(number) {
		return env.send(ctx, "❌ Invalid phone number format.")
	}

	if env.WhatsApp == nil {
		return env.send(ctx, fmt.Sprintf("❌ Error: %v", errNoWhatsApp))
	}

	id, err := env.WhatsApp.SendText(ctx, contacts.JID(number), text)
	if err != nil {
		slog.Error("send whatsapp message failed", "number", number, "error", err)
		return env.send(ctx, fmt.Sprintf("❌ Error: %v", err))
	}
	if id == "" {
		return env.send(ctx, "⚠️ Message sent, but no confirmation")
	}
	return env.send(ctx, fmt.Sprintf("✅ Message sent to %s", number))
}
