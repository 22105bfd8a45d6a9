package whatsapp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MEKXH/wabridge/internal/bus"
	"github.com/MEKXH/wabridge/internal/config"
)

// fakeBridge answers requests the way the bridge process does.
type fakeBridge struct {
	silent bool
	greet  []frame
	got    chan frame
}

func (b *fakeBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for _, f := range b.greet {
		if err := conn.WriteJSON(f); err != nil {
			return
		}
	}
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		if b.got != nil {
			b.got <- f
		}
		if b.silent {
			continue
		}
		var reply frame
		switch {
		case f.Type == frameMessage && strings.HasPrefix(f.To, "000"):
			reply = frame{Type: frameError, Ref: f.ID, Error: "not on whatsapp"}
		case f.Type == frameMessage:
			reply = frame{Type: frameAck, Ref: f.ID, MessageID: "WA-1"}
		case f.Type == frameContacts:
			reply = frame{Type: frameContacts, Ref: f.ID, Contacts: []frameContact{
				{JID: "15550001111@s.whatsapp.net", Name: " Alice "},
				{JID: "123-456@g.us", Name: "Group"},
				{JID: "15550002222:3@s.whatsapp.net", Name: ""},
			}}
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}

func startChannel(t *testing.T, bridge *fakeBridge) (*Channel, *bus.MessageBus) {
	t.Helper()
	srv := httptest.NewServer(bridge)
	t.Cleanup(srv.Close)

	msgBus := bus.NewMessageBus(4)
	ch := New(&config.WhatsAppConfig{BridgeURL: "ws" + strings.TrimPrefix(srv.URL, "http"), AckTimeout: 1}, msgBus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = ch.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		ch.mu.RLock()
		up := ch.conn != nil
		ch.mu.RUnlock()
		if up {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("channel never connected")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return ch, msgBus
}

func TestSendText_ReturnsAcknowledgedID(t *testing.T) {
	bridge := &fakeBridge{got: make(chan frame, 1)}
	ch, _ := startChannel(t, bridge)

	id, err := ch.SendText(context.Background(), "15550001111@s.whatsapp.net", "hello")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if id != "WA-1" {
		t.Fatalf("expected WA-1, got %q", id)
	}
	sent := <-bridge.got
	if sent.Type != frameMessage || sent.To != "15550001111@s.whatsapp.net" || sent.Content != "hello" || sent.ID == "" {
		t.Fatalf("unexpected frame: %+v", sent)
	}
}

func TestSendText_BridgeError(t *testing.T) {
	ch, _ := startChannel(t, &fakeBridge{})

	_, err := ch.SendText(context.Background(), "0001@s.whatsapp.net", "hello")
	if err == nil || !strings.Contains(err.Error(), "not on whatsapp") {
		t.Fatalf("expected bridge error, got %v", err)
	}
}

func TestSendText_NoAckIsUnconfirmed(t *testing.T) {
	ch, _ := startChannel(t, &fakeBridge{silent: true})
	ch.ackTimeout = 50 * time.Millisecond

	id, err := ch.SendText(context.Background(), "15550001111@s.whatsapp.net", "hello")
	if err != nil || id != "" {
		t.Fatalf("expected unconfirmed send, got %q, %v", id, err)
	}
}

func TestFetchContacts(t *testing.T) {
	ch, _ := startChannel(t, &fakeBridge{})

	list, err := ch.FetchContacts(context.Background())
	if err != nil {
		t.Fatalf("FetchContacts: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 contacts (group skipped), got %+v", list)
	}
	if list[0].Phone != "15550001111" || list[0].Name != "Alice" {
		t.Fatalf("unexpected first contact: %+v", list[0])
	}
	if list[1].Phone != "15550002222" {
		t.Fatalf("device suffix should be stripped: %+v", list[1])
	}
}

func TestFetchContacts_Timeout(t *testing.T) {
	ch, _ := startChannel(t, &fakeBridge{silent: true})
	ch.ackTimeout = 50 * time.Millisecond

	if _, err := ch.FetchContacts(context.Background()); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestInboundAndStatusFrames(t *testing.T) {
	connected := true
	bridge := &fakeBridge{greet: []frame{
		{Type: frameStatus, Connected: &connected, User: &frameUser{Name: "Owner"}},
		{Type: frameMessage, ID: "m1", From: "15550001111@s.whatsapp.net", FromName: "Alice", Content: "hi there"},
		{Type: frameMessage, From: "15550001111@s.whatsapp.net", Content: "   "},
	}}
	ch, msgBus := startChannel(t, bridge)

	select {
	case msg := <-msgBus.Inbound():
		if msg.Channel != "whatsapp" || msg.SenderName != "Alice" || msg.ChatID != "15550001111@s.whatsapp.net" || msg.Content != "hi there" {
			t.Fatalf("unexpected inbound: %+v", msg)
		}
		if msg.Metadata["message_id"] != "m1" {
			t.Fatalf("expected message id metadata, got %+v", msg.Metadata)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for inbound message")
	}

	ok, user := ch.Status()
	if !ok || user != "Owner" {
		t.Fatalf("unexpected status %v %q", ok, user)
	}
}

func TestNotConnected(t *testing.T) {
	ch := New(&config.WhatsAppConfig{}, bus.NewMessageBus(1))

	if _, err := ch.SendText(context.Background(), "1@s.whatsapp.net", "x"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := ch.Start(context.Background()); err == nil {
		t.Fatal("expected error for empty bridge url")
	}
	if ok, _ := ch.Status(); ok {
		t.Fatal("expected disconnected status")
	}
}
