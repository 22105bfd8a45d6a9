package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MEKXH/wabridge/internal/bus"
	"github.com/MEKXH/wabridge/internal/channel"
	"github.com/MEKXH/wabridge/internal/command"
	"github.com/MEKXH/wabridge/internal/config"
	"github.com/MEKXH/wabridge/internal/contacts"
)

var (
	// ErrNotConnected is returned when no bridge connection is up.
	ErrNotConnected = errors.New("whatsapp bridge not connected")
	// ErrTimeout is returned when the bridge does not answer a request in time.
	ErrTimeout = errors.New("whatsapp bridge did not respond")
)

var (
	_ channel.Channel  = (*Channel)(nil)
	_ command.WhatsApp = (*Channel)(nil)
)

const (
	frameMessage  = "message"
	frameAck      = "ack"
	frameError    = "error"
	frameContacts = "contacts"
	frameStatus   = "status"

	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// frame is one JSON message exchanged with the bridge process.
type frame struct {
	Type      string         `json:"type"`
	ID        string         `json:"id,omitempty"`
	Ref       string         `json:"ref,omitempty"`
	To        string         `json:"to,omitempty"`
	Content   string         `json:"content,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
	Error     string         `json:"error,omitempty"`
	From      string         `json:"from,omitempty"`
	FromName  string         `json:"from_name,omitempty"`
	Chat      string         `json:"chat,omitempty"`
	Connected *bool          `json:"connected,omitempty"`
	User      *frameUser     `json:"user,omitempty"`
	Contacts  []frameContact `json:"contacts,omitempty"`
}

type frameUser struct {
	Name string `json:"name"`
}

type frameContact struct {
	JID  string `json:"jid"`
	Name string `json:"name"`
}

// Channel is a WhatsApp client speaking to a bridge process over websocket.
type Channel struct {
	channel.BaseChannel
	cfg        *config.WhatsAppConfig
	ackTimeout time.Duration

	writeMu sync.Mutex
	mu      sync.RWMutex
	conn    *websocket.Conn
	pending map[string]chan frame

	connected bool
	userName  string
}

// New creates a WhatsApp channel instance.
func New(cfg *config.WhatsAppConfig, msgBus *bus.MessageBus) *Channel {
	timeout := time.Duration(cfg.AckTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Channel{
		BaseChannel: channel.BaseChannel{Bus: msgBus},
		cfg:         cfg,
		ackTimeout:  timeout,
		pending:     make(map[string]chan frame),
	}
}

func (c *Channel) Name() string { return channel.WhatsApp }

// Start keeps a bridge connection up until ctx is done, redialing with
// backoff after failures.
func (c *Channel) Start(ctx context.Context) error {
	if c.cfg == nil {
		return fmt.Errorf("missing whatsapp config")
	}
	if strings.TrimSpace(c.cfg.BridgeURL) == "" {
		return fmt.Errorf("whatsapp bridge_url is empty")
	}

	delay := reconnectBaseDelay
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			slog.Warn("whatsapp bridge dial failed", "url", c.cfg.BridgeURL, "retry_in", delay, "error", err)
		} else {
			delay = reconnectBaseDelay
			slog.Info("whatsapp bridge connected", "url", c.cfg.BridgeURL)
			c.serve(ctx, conn)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, reconnectMaxDelay)
	}
}

func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	return nil
}

// Send delivers a bridge message to a WhatsApp chat.
func (c *Channel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	_, err := c.SendText(ctx, msg.ChatID, msg.Content)
	return err
}

// SendText sends text to jid and waits for the bridge acknowledgement. It
// returns "" with a nil error when no acknowledgement arrives in time.
func (c *Channel) SendText(ctx context.Context, jid, text string) (string, error) {
	reply, err := c.request(ctx, frame{Type: frameMessage, To: jid, Content: text})
	if errors.Is(err, ErrTimeout) {
		slog.Warn("whatsapp send not acknowledged", "request_id", bus.RequestIDFromContext(ctx), "to", jid, "timeout", c.ackTimeout)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return reply.MessageID, nil
}

// FetchContacts asks the bridge for the account's contact list.
func (c *Channel) FetchContacts(ctx context.Context) ([]contacts.Contact, error) {
	reply, err := c.request(ctx, frame{Type: frameContacts})
	if err != nil {
		return nil, err
	}
	list := make([]contacts.Contact, 0, len(reply.Contacts))
	for _, fc := range reply.Contacts {
		if strings.HasSuffix(fc.JID, "@g.us") {
			continue
		}
		phone := contacts.NormalizePhone(fc.JID)
		if phone == "" {
			continue
		}
		list = append(list, contacts.Contact{Phone: phone, Name: strings.TrimSpace(fc.Name)})
	}
	return list, nil
}

// Status reports whether WhatsApp is connected and as whom.
func (c *Channel) Status() (bool, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.conn != nil, c.userName
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.BridgeURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to whatsapp bridge: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return conn, nil
}

// serve reads frames from conn until it fails or ctx is done.
func (c *Channel) serve(ctx context.Context, conn *websocket.Conn) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("whatsapp read failed", "error", err)
			}
			break
		}
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			slog.Warn("whatsapp decode failed", "error", err)
			continue
		}
		c.handleFrame(f)
	}

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Channel) handleFrame(f frame) {
	switch f.Type {
	case frameAck, frameError, frameContacts:
		c.resolve(f)
	case frameStatus:
		c.mu.Lock()
		if f.Connected != nil {
			c.connected = *f.Connected
		}
		if f.User != nil {
			c.userName = f.User.Name
		}
		c.mu.Unlock()
		slog.Info("whatsapp status", "connected", f.Connected != nil && *f.Connected)
	case frameMessage:
		c.publish(f)
	default:
		slog.Debug("ignored whatsapp frame", "type", f.Type)
	}
}

func (c *Channel) publish(f frame) {
	if f.From == "" || strings.TrimSpace(f.Content) == "" {
		return
	}
	chatID := f.Chat
	if chatID == "" {
		chatID = f.From
	}
	metadata := map[string]any{}
	if f.ID != "" {
		metadata["message_id"] = f.ID
	}
	c.PublishInbound(&bus.InboundMessage{
		Channel:    c.Name(),
		SenderID:   f.From,
		SenderName: f.FromName,
		ChatID:     chatID,
		Content:    f.Content,
		Timestamp:  time.Now(),
		Metadata:   metadata,
		RequestID:  bus.NewRequestID(),
	})
}

func (c *Channel) resolve(f frame) {
	if f.Ref == "" {
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[f.Ref]
	delete(c.pending, f.Ref)
	c.mu.Unlock()
	if !ok {
		slog.Debug("whatsapp reply without request", "ref", f.Ref, "type", f.Type)
		return
	}
	ch <- f
}

// request writes f with a fresh id and waits for the frame that refers to it.
func (c *Channel) request(ctx context.Context, f frame) (frame, error) {
	f.ID = uuid.NewString()
	reply := make(chan frame, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return frame{}, ErrNotConnected
	}
	c.pending[f.ID] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err := conn.WriteJSON(f)
	c.writeMu.Unlock()
	if err != nil {
		return frame{}, fmt.Errorf("write whatsapp %s: %w", f.Type, err)
	}

	timer := time.NewTimer(c.ackTimeout)
	defer timer.Stop()
	select {
	case r := <-reply:
		if r.Type == frameError {
			return frame{}, fmt.Errorf("whatsapp %s failed: %s", f.Type, r.Error)
		}
		return r, nil
	case <-timer.C:
		return frame{}, ErrTimeout
	case <-ctx.Done():
		return frame{}, ctx.Err()
	}
}
