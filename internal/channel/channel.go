package channel

import (
	"context"
	"strings"

	"github.com/MEKXH/wabridge/internal/bus"
)

// Channel names used on the bus.
const (
	Telegram = "telegram"
	WhatsApp = "whatsapp"
)

// Channel is one side of the bridge.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg *bus.OutboundMessage) error
	IsAllowed(senderID string) bool
}

// AllowList holds sender ids or usernames permitted to talk to a channel.
// An empty list allows everyone.
type AllowList map[string]bool

// NewAllowList builds an allow list from config entries. Usernames may be
// written with or without a leading "@".
func NewAllowList(entries []string) AllowList {
	allow := make(AllowList, len(entries))
	for _, e := range entries {
		e = strings.TrimPrefix(strings.TrimSpace(e), "@")
		if e != "" {
			allow[e] = true
		}
	}
	return allow
}

// Allows checks a sender id. Telegram senders are written "id|username" and
// match on either part.
func (a AllowList) Allows(senderID string) bool {
	if len(a) == 0 {
		return true
	}
	id, user, _ := strings.Cut(senderID, "|")
	if a[senderID] || a[id] {
		return true
	}
	return user != "" && a[strings.TrimPrefix(user, "@")]
}

// BaseChannel provides what every channel shares.
type BaseChannel struct {
	Bus   *bus.MessageBus
	Allow AllowList
}

// IsAllowed checks if sender is permitted.
func (b *BaseChannel) IsAllowed(senderID string) bool {
	return b.Allow.Allows(senderID)
}

// PublishInbound sends message to bus.
func (b *BaseChannel) PublishInbound(msg *bus.InboundMessage) {
	b.Bus.PublishInbound(msg)
}
