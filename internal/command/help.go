package command

import (
	"context"
	"fmt"
	"strings"
)

// HelpCommand is the fallback for unknown commands and lists what is available.
type HelpCommand struct{}

func (c *HelpCommand) Kind() Kind          { return KindUnknown }
func (c *HelpCommand) Usage() string       { return "/help" }
func (c *HelpCommand) Description() string { return "List available commands" }

func (c *HelpCommand) Execute(ctx context.Context, _ []string, env Env) error {
	var sb strings.Builder
	sb.WriteString("ℹ️ *Available Commands*\n\n")
	if env.ListCommands != nil {
		for _, cmd := range env.ListCommands() {
			sb.WriteString(fmt.Sprintf("%s - %s\n", cmd.Usage(), cmd.Description()))
		}
	}
	sb.WriteString("\n💡 *Tip:* Use the Previous/Next buttons to navigate through contacts!")
	return env.send(ctx, sb.String())
}
