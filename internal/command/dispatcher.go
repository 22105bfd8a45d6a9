package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MEKXH/wabridge/internal/audit"
	"github.com/MEKXH/wabridge/internal/pager"
)

const (
	deniedText         = "🔒 Access denied. Use /password [your_password] to authenticate."
	deniedCallbackText = "🔒 Access denied. Use /password to authenticate."
	callbackErrorText  = "❌ Error occurred"

	// callbackAuditName is the audit command name for inline-button presses.
	callbackAuditName = "callback"
)

// Message is an inbound bot text message.
type Message struct {
	ChatID    int64
	UserID    int64
	MessageID int
	Text      string
}

// Callback is an inbound inline-button press.
type Callback struct {
	ID        string
	ChatID    int64
	UserID    int64
	MessageID int
	Data      string
}

// Dispatcher routes messages and button presses to commands. No error
// escapes HandleMessage or HandleCallback; failures become chat replies.
type Dispatcher struct {
	deps     *Deps
	registry *Registry
}

// NewDispatcher creates a dispatcher. A nil registry means DefaultRegistry.
func NewDispatcher(deps *Deps, registry *Registry) *Dispatcher {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Dispatcher{deps: deps, registry: registry}
}

// HandleMessage runs the command named by msg. Text that is not a command is ignored.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg Message) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	fields := strings.Fields(text)
	kind := ParseKind(fields[0])
	cmd := d.registry.Lookup(kind)
	env := d.env(msg.ChatID, msg.UserID)

	if kind != KindPassword && !d.authenticated(msg.UserID) {
		slog.Info("command denied", "command", kind.String(), "chat_id", msg.ChatID, "user_id", msg.UserID)
		d.audit(audit.TypeDenied, msg.ChatID, msg.UserID, kind.String(), "denied")
		if err := env.send(ctx, deniedText); err != nil {
			slog.Warn("send denial failed", "chat_id", msg.ChatID, "error", err)
		}
		return
	}

	start := time.Now()
	err := d.execute(ctx, cmd, fields[1:], env)
	if _, metricErr := d.deps.Metrics.RecordCommand(kind.String(), time.Since(start), err); metricErr != nil {
		slog.Warn("record runtime metrics failed", "scope", "command", "error", metricErr)
	}
	if err == nil {
		d.audit(audit.TypeCommand, msg.ChatID, msg.UserID, kind.String(), "ok")
		return
	}
	d.audit(audit.TypeCommand, msg.ChatID, msg.UserID, kind.String(), "error")

	slog.Error("command failed", "command", kind.String(), "chat_id", msg.ChatID, "error", err)
	if sendErr := env.send(ctx, fmt.Sprintf("❌ Command error: %v", err)); sendErr != nil {
		slog.Warn("send command error failed", "chat_id", msg.ChatID, "error", sendErr)
	}
}

// HandleCallback applies a navigation token from an inline button. Malformed
// tokens are acknowledged and otherwise ignored.
func (d *Dispatcher) HandleCallback(ctx context.Context, cb Callback) {
	if !d.authenticated(cb.UserID) {
		slog.Info("callback denied", "chat_id", cb.ChatID, "user_id", cb.UserID)
		d.audit(audit.TypeDenied, cb.ChatID, cb.UserID, callbackAuditName, "denied")
		d.answer(ctx, cb.ID, deniedCallbackText, true)
		return
	}

	tok, err := pager.DecodeToken(cb.Data)
	if err != nil {
		slog.Debug("ignored callback", "chat_id", cb.ChatID, "data", cb.Data, "error", err)
		d.answer(ctx, cb.ID, "", false)
		return
	}

	// The pressed message is edited. The session only fills in when the
	// callback carries no message, as with inline-mode results.
	messageID := cb.MessageID
	if messageID == 0 && d.deps.Sessions != nil {
		if sess, ok := d.deps.Sessions.Get(cb.ChatID); ok {
			messageID = sess.MessageID
		}
	}

	var page pager.Page
	err = safely(func() error {
		var showErr error
		page, showErr = showList(ctx, d.env(cb.ChatID, cb.UserID), tok.Kind, tok.Query, tok.Page, messageID)
		return showErr
	})
	if err != nil {
		slog.Error("navigation failed", "chat_id", cb.ChatID, "kind", string(tok.Kind), "page", tok.Page, "error", err)
		d.answer(ctx, cb.ID, callbackErrorText, true)
		return
	}
	d.answer(ctx, cb.ID, fmt.Sprintf("📄 Page %d", page.Index+1), false)
}

// RegisterCommands publishes the command menu. Failures are logged only.
func (d *Dispatcher) RegisterCommands(ctx context.Context) {
	cmds := d.registry.BotCommands()
	if err := d.deps.Out.SetCommands(ctx, cmds); err != nil {
		slog.Warn("register bot commands failed", "error", err)
		return
	}
	slog.Info("registered bot commands", "count", len(cmds))
}

func (d *Dispatcher) execute(ctx context.Context, cmd Command, args []string, env Env) error {
	return safely(func() error {
		return cmd.Execute(ctx, args, env)
	})
}

func (d *Dispatcher) audit(eventType string, chatID, userID int64, name, result string) {
	err := d.deps.Audit.Append(audit.Event{
		Type:    eventType,
		ChatID:  chatID,
		UserID:  userID,
		Command: name,
		Result:  result,
	})
	if err != nil {
		slog.Warn("append audit event failed", "error", err)
	}
}

func (d *Dispatcher) authenticated(userID int64) bool {
	return d.deps.Auth != nil && d.deps.Auth.IsAuthenticated(userID)
}

func (d *Dispatcher) answer(ctx context.Context, callbackID, text string, alert bool) {
	if err := d.deps.Out.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		slog.Warn("answer callback failed", "callback_id", callbackID, "error", err)
	}
}

func (d *Dispatcher) env(chatID, userID int64) Env {
	return Env{
		Deps:         d.deps,
		ChatID:       chatID,
		UserID:       userID,
		ListCommands: d.registry.List,
	}
}

var errPanic = errors.New("command panicked")

func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return fn()
}
