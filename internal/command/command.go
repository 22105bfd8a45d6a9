package command

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Kind enumerates the bot commands. KindUnknown covers every text that
// starts with "/" but names no command.
type Kind int

const (
	KindUnknown Kind = iota
	KindPassword
	KindStart
	KindStatus
	KindSend
	KindSync
	KindContacts
	KindSearchContact
	KindAddFilter
	KindFilters
	KindClearFilters

	kindCount
)

var kindNames = [kindCount]string{
	KindUnknown:       "help",
	KindPassword:      "password",
	KindStart:         "start",
	KindStatus:        "status",
	KindSend:          "send",
	KindSync:          "sync",
	KindContacts:      "contacts",
	KindSearchContact: "searchcontact",
	KindAddFilter:     "addfilter",
	KindFilters:       "filters",
	KindClearFilters:  "clearfilters",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a command token such as "/Contacts@my_bot" to its Kind.
func ParseKind(token string) Kind {
	name, ok := strings.CutPrefix(strings.TrimSpace(token), "/")
	if !ok {
		return KindUnknown
	}
	name, _, _ = strings.Cut(name, "@")
	name = strings.ToLower(name)
	for k := KindUnknown + 1; k < kindCount; k++ {
		if kindNames[k] == name {
			return k
		}
	}
	return KindUnknown
}

// Command is the interface every slash command must implement.
type Command interface {
	// Kind returns the command this handler serves.
	Kind() Kind
	// Usage returns the trigger with its arguments, e.g. "/send <number> <msg>".
	Usage() string
	// Description returns a short human-readable summary.
	Description() string
	// Execute runs the command. args are the whitespace-separated words after the trigger.
	Execute(ctx context.Context, args []string, env Env) error
}

// Registry is a total dispatch table from Kind to Command.
type Registry struct {
	cmds [kindCount]Command
}

// NewRegistry builds a registry. It panics on duplicate kinds and when any
// kind, KindUnknown included, is left without a handler.
func NewRegistry(cmds ...Command) *Registry {
	r := &Registry{}
	for _, cmd := range cmds {
		k := cmd.Kind()
		if k < 0 || k >= kindCount {
			panic(fmt.Sprintf("command has invalid kind %d", int(k)))
		}
		if r.cmds[k] != nil {
			panic("command already registered: " + k.String())
		}
		r.cmds[k] = cmd
	}
	for k := Kind(0); k < kindCount; k++ {
		if r.cmds[k] == nil {
			panic("no handler for command: " + k.String())
		}
	}
	return r
}

// DefaultRegistry returns a registry with every bot command.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&HelpCommand{},
		&PasswordCommand{},
		&StartCommand{},
		&StatusCommand{},
		&SendCommand{},
		&SyncCommand{},
		&ContactsCommand{},
		&SearchContactCommand{},
		&AddFilterCommand{},
		&ListFiltersCommand{},
		&ClearFiltersCommand{},
	)
}

// Lookup returns the handler for k. Out-of-range kinds get the help handler.
func (r *Registry) Lookup(k Kind) Command {
	if k < 0 || k >= kindCount {
		return r.cmds[KindUnknown]
	}
	return r.cmds[k]
}

// List returns the named commands in menu order, without the help fallback.
func (r *Registry) List() []Command {
	out := make([]Command, 0, kindCount-1)
	for k := KindUnknown + 1; k < kindCount; k++ {
		out = append(out, r.cmds[k])
	}
	return slices.Clip(out)
}

// BotCommands returns the entries published to the Telegram command menu.
func (r *Registry) BotCommands() []BotCommand {
	list := r.List()
	out := make([]BotCommand, 0, len(list))
	for _, cmd := range list {
		out = append(out, BotCommand{Command: cmd.Kind().String(), Description: cmd.Description()})
	}
	return out
}
