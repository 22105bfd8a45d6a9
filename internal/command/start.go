package command

import (
	"context"
	"fmt"
	"time"
)

// StartCommand implements /start, which greets and shows uptime.
type StartCommand struct{}

func (c *StartCommand) Kind() Kind          { return KindStart }
func (c *StartCommand) Usage() string       { return "/start" }
func (c *StartCommand) Description() string { return "Show bot info" }

func (c *StartCommand) Execute(ctx context.Context, _ []string, env Env) error {
	if env.StartedAt.IsZero() {
		return env.send(ctx, "Hi! The bot is up and running")
	}
	uptime := env.now().Sub(env.StartedAt)
	return env.send(ctx, fmt.Sprintf("Hi! The bot is up and running\n\n• Up Since: %s [ %s ]",
		FormatStartTime(env.StartedAt), FormatUptime(uptime)))
}

// FormatUptime renders d as e.g. "2d3h4m5s", dropping leading zero units.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	h, m, s := hours%24, minutes%60, seconds%60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh%dm%ds", days, h, m, s)
	case hours > 0:
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	case minutes > 0:
		return fmt.Sprintf("%dm%ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatStartTime renders t as "02 Jan, 2006 - Mon @ 15:04" in local time.
func FormatStartTime(t time.Time) string {
	return t.Local().Format("02 Jan, 2006 - Mon @ 15:04")
}
