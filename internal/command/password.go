package command

import (
	"context"
	"log/slog"
	"strings"
)

// PasswordCommand implements /password <pw>. It is the only command
// available before authentication.
type PasswordCommand struct{}

func (c *PasswordCommand) Kind() Kind          { return KindPassword }
func (c *PasswordCommand) Usage() string       { return "/password <pass>" }
func (c *PasswordCommand) Description() string { return "Authenticate with password" }

func (c *PasswordCommand) Execute(ctx context.Context, args []string, env Env) error {
	if len(args) == 0 {
		return env.send(ctx, "❌ Usage: /password <your_password>")
	}

	ok, err := env.Auth.Authenticate(env.UserID, strings.Join(args, " "))
	if err != nil {
		slog.Warn("authentication not persisted", "user_id", env.UserID, "error", err)
	}
	if !ok {
		return env.send(ctx, "❌ Invalid password. Access denied.")
	}
	return env.send(ctx, "✅ Authentication successful! You can now use bot commands and reply to messages.")
}
