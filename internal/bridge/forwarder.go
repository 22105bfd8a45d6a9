// Package bridge carries inbound WhatsApp traffic to the owner's Telegram chat.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/MEKXH/wabridge/internal/bus"
	"github.com/MEKXH/wabridge/internal/channel"
	"github.com/MEKXH/wabridge/internal/contacts"
	"github.com/MEKXH/wabridge/internal/metrics"
)

// Blocker decides whether an inbound text is dropped.
type Blocker interface {
	Blocked(text string) bool
}

// Directory is the contact directory as seen by the forwarder.
type Directory interface {
	Observe(ctx context.Context, c contacts.Contact)
	Name(phone string) (string, bool)
}

// Forwarder reads WhatsApp messages off the bus and republishes them for
// Telegram. It also counts the chats and users it has seen.
type Forwarder struct {
	bus       *bus.MessageBus
	directory Directory
	blocker   Blocker
	metrics   *metrics.RuntimeMetrics
	chatID    int64

	mu    sync.RWMutex
	chats map[string]struct{}
	users map[string]struct{}
}

// NewForwarder creates a forwarder delivering to the Telegram chat chatID.
// A zero chatID disables delivery but still tracks contacts and mappings.
func NewForwarder(msgBus *bus.MessageBus, directory Directory, blocker Blocker, recorder *metrics.RuntimeMetrics, chatID int64) *Forwarder {
	return &Forwarder{
		bus:       msgBus,
		directory: directory,
		blocker:   blocker,
		metrics:   recorder,
		chatID:    chatID,
		chats:     make(map[string]struct{}),
		users:     make(map[string]struct{}),
	}
}

// Run forwards until ctx is done or the inbound queue is closed.
func (f *Forwarder) Run(ctx context.Context) error {
	slog.Info("forwarder started", "telegram_chat_id", f.chatID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-f.bus.Inbound():
			if !ok {
				return fmt.Errorf("inbound channel closed")
			}
			if msg == nil {
				slog.Warn("received nil inbound message")
				continue
			}
			if err := f.Handle(ctx, msg); err != nil {
				slog.Error("forward message failed", "request_id", msg.RequestID, "chat_id", msg.ChatID, "error", err)
			}
		}
	}
}

// Handle processes one inbound message.
func (f *Forwarder) Handle(ctx context.Context, msg *bus.InboundMessage) error {
	if msg.Channel != channel.WhatsApp {
		slog.Debug("ignored inbound message", "channel", msg.Channel)
		return nil
	}
	if strings.TrimSpace(msg.RequestID) == "" {
		msg.RequestID = bus.NewRequestID()
	}
	ctx = bus.WithRequestID(ctx, msg.RequestID)

	phone := contacts.NormalizePhone(msg.SenderID)
	f.track(msg, phone)
	if phone != "" && f.directory != nil {
		f.directory.Observe(ctx, contacts.Contact{Phone: phone, Name: msg.SenderName})
	}

	if f.blocker != nil && f.blocker.Blocked(msg.Content) {
		slog.Info("message filtered", "request_id", bus.RequestIDFromContext(ctx), "from", phone, "group", msg.IsGroup())
		f.metrics.RecordForward(true)
		return nil
	}
	if f.chatID == 0 {
		slog.Debug("no telegram chat configured, message not forwarded", "request_id", bus.RequestIDFromContext(ctx))
		return nil
	}

	out := &bus.OutboundMessage{
		Channel:   channel.Telegram,
		ChatID:    strconv.FormatInt(f.chatID, 10),
		Content:   f.format(msg, phone),
		RequestID: bus.RequestIDFromContext(ctx),
	}
	if err := f.bus.PublishOutboundContext(ctx, out); err != nil {
		return fmt.Errorf("queue telegram message: %w", err)
	}
	f.metrics.RecordForward(false)
	return nil
}

// ChatCount returns the number of distinct WhatsApp chats seen.
func (f *Forwarder) ChatCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.chats)
}

// UserCount returns the number of distinct WhatsApp senders seen.
func (f *Forwarder) UserCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.users)
}

func (f *Forwarder) track(msg *bus.InboundMessage, phone string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.ChatID != "" {
		f.chats[msg.SessionKey()] = struct{}{}
	}
	if phone != "" {
		f.users[phone] = struct{}{}
	}
}

func (f *Forwarder) format(msg *bus.InboundMessage, phone string) string {
	name := strings.TrimSpace(msg.SenderName)
	if name == "" && f.directory != nil {
		name, _ = f.directory.Name(phone)
	}
	if name == "" {
		name = "Unknown"
	}
	header := fmt.Sprintf("💬 *%s* (+%s)", name, phone)
	if msg.IsGroup() {
		header += " in 👥 " + strings.TrimSuffix(msg.ChatID, "@g.us")
	}
	return header + "\n\n" + msg.Content
}
