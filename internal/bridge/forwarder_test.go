package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MEKXH/wabridge/internal/bus"
	"github.com/MEKXH/wabridge/internal/contacts"
	"github.com/MEKXH/wabridge/internal/metrics"
	"github.com/MEKXH/wabridge/internal/state"
)

func inbound(from, name, text string) *bus.InboundMessage {
	return &bus.InboundMessage{
		Channel:    "whatsapp",
		SenderID:   from,
		SenderName: name,
		ChatID:     from,
		Content:    text,
	}
}

func TestHandle_ForwardsToTelegram(t *testing.T) {
	msgBus := bus.NewMessageBus(2)
	dir := contacts.NewDirectory(nil)
	recorder := metrics.NewRuntimeMetrics("")
	f := NewForwarder(msgBus, dir, state.NewManager(t.TempDir()), recorder, 42)

	if err := f.Handle(context.Background(), inbound("15550001111@s.whatsapp.net", "Alice", "hi")); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	out := <-msgBus.Outbound()
	if out.Channel != "telegram" || out.ChatID != "42" {
		t.Fatalf("unexpected target: %+v", out)
	}
	if want := "💬 *Alice* (+15550001111)\n\nhi"; out.Content != want {
		t.Fatalf("got %q want %q", out.Content, want)
	}
	if out.RequestID == "" {
		t.Fatal("expected request id")
	}
	if name, ok := dir.Name("15550001111"); !ok || name != "Alice" {
		t.Fatalf("expected contact learned, got %q %v", name, ok)
	}
	if got := recorder.Snapshot().Channel.Forwarded; got != 1 {
		t.Fatalf("expected one forwarded, got %d", got)
	}
}

func TestHandle_UsesDirectoryNameWhenSenderHasNone(t *testing.T) {
	msgBus := bus.NewMessageBus(2)
	dir := contacts.NewDirectory(nil)
	if _, err := dir.Merge(context.Background(), []contacts.Contact{{Phone: "15550001111", Name: "Alice"}}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	f := NewForwarder(msgBus, dir, nil, nil, 42)

	if err := f.Handle(context.Background(), inbound("15550001111@s.whatsapp.net", "", "yo")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out := <-msgBus.Outbound(); out.Content != "💬 *Alice* (+15550001111)\n\nyo" {
		t.Fatalf("unexpected content %q", out.Content)
	}

	if err := f.Handle(context.Background(), inbound("15550009999@s.whatsapp.net", "", "who")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out := <-msgBus.Outbound(); out.Content != "💬 *Unknown* (+15550009999)\n\nwho" {
		t.Fatalf("unexpected content %q", out.Content)
	}
}

func TestHandle_DropsFilteredMessages(t *testing.T) {
	msgBus := bus.NewMessageBus(1)
	filters := state.NewManager(t.TempDir())
	if err := filters.AddFilter("Promo"); err != nil {
		t.Fatalf("AddFilter: %v", err)
	}
	recorder := metrics.NewRuntimeMetrics("")
	f := NewForwarder(msgBus, contacts.NewDirectory(nil), filters, recorder, 42)

	if err := f.Handle(context.Background(), inbound("15550001111@s.whatsapp.net", "Shop", "PROMO: 50% off")); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	select {
	case out := <-msgBus.Outbound():
		t.Fatalf("filtered message was forwarded: %+v", out)
	default:
	}
	if got := recorder.Snapshot().Channel.Filtered; got != 1 {
		t.Fatalf("expected one filtered, got %d", got)
	}
	if f.UserCount() != 1 || f.ChatCount() != 1 {
		t.Fatal("filtered messages still count towards mappings")
	}
}

func TestHandle_CountsChatsAndUsers(t *testing.T) {
	msgBus := bus.NewMessageBus(8)
	f := NewForwarder(msgBus, nil, nil, nil, 0)
	ctx := context.Background()

	group := inbound("15550001111@s.whatsapp.net", "Alice", "hi")
	group.ChatID = "1234-5678@g.us"
	msgs := []*bus.InboundMessage{
		inbound("15550001111@s.whatsapp.net", "Alice", "one"),
		inbound("15550001111@s.whatsapp.net", "Alice", "two"),
		inbound("15550002222@s.whatsapp.net", "Bob", "three"),
		group,
	}
	for _, m := range msgs {
		if err := f.Handle(ctx, m); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}

	if f.ChatCount() != 3 || f.UserCount() != 2 {
		t.Fatalf("got chats=%d users=%d", f.ChatCount(), f.UserCount())
	}
	select {
	case out := <-msgBus.Outbound():
		t.Fatalf("nothing should be forwarded without a chat id, got %+v", out)
	default:
	}
}

func TestHandle_LabelsGroupMessages(t *testing.T) {
	msgBus := bus.NewMessageBus(1)
	f := NewForwarder(msgBus, nil, nil, nil, 42)

	msg := inbound("15550001111@s.whatsapp.net", "Alice", "lunch?")
	msg.ChatID = "1234-5678@g.us"
	if err := f.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out := <-msgBus.Outbound(); out.Content != "💬 *Alice* (+15550001111) in 👥 1234-5678\n\nlunch?" {
		t.Fatalf("unexpected content %q", out.Content)
	}
}

func TestHandle_KeepsInboundRequestID(t *testing.T) {
	msgBus := bus.NewMessageBus(1)
	f := NewForwarder(msgBus, nil, nil, nil, 42)

	msg := inbound("15550001111@s.whatsapp.net", "Alice", "hi")
	msg.RequestID = "req-7"
	if err := f.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out := <-msgBus.Outbound(); out.RequestID != "req-7" {
		t.Fatalf("expected request id req-7, got %q", out.RequestID)
	}
}

func TestHandle_IgnoresOtherChannels(t *testing.T) {
	msgBus := bus.NewMessageBus(1)
	f := NewForwarder(msgBus, nil, nil, nil, 42)

	msg := inbound("1", "x", "y")
	msg.Channel = "telegram"
	if err := f.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if f.ChatCount() != 0 {
		t.Fatal("telegram messages must not be tracked")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	msgBus := bus.NewMessageBus(2)
	f := NewForwarder(msgBus, nil, nil, nil, 42)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(ctx) }()

	msgBus.PublishInbound(inbound("15550001111@s.whatsapp.net", "Alice", "hi"))
	select {
	case <-msgBus.Outbound():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded message")
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
