package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/MEKXH/wabridge/internal/bus"
	"github.com/MEKXH/wabridge/internal/channel"
	"github.com/MEKXH/wabridge/internal/command"
	"github.com/MEKXH/wabridge/internal/config"
)

var errBotNotReady = errors.New("bot not initialized")

var (
	_ channel.Channel   = (*Channel)(nil)
	_ command.Messenger = (*Channel)(nil)
)

// Handler receives bot messages and inline-button presses.
type Handler interface {
	HandleMessage(ctx context.Context, msg command.Message)
	HandleCallback(ctx context.Context, cb command.Callback)
}

// botAPI is the part of *tgbotapi.BotAPI the channel uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Channel implements the Telegram bot. It is both the bridge channel that
// delivers forwarded messages and the Messenger commands reply through.
type Channel struct {
	channel.BaseChannel
	cfg     *config.TelegramConfig
	limiter *rate.Limiter

	mu      sync.RWMutex
	bot     botAPI
	handler Handler
}

// New creates a Telegram channel.
func New(cfg *config.TelegramConfig, msgBus *bus.MessageBus) *Channel {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Channel{
		BaseChannel: channel.BaseChannel{
			Bus:   msgBus,
			Allow: channel.NewAllowList(cfg.AllowFrom),
		},
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// SetHandler installs the receiver of bot updates. Updates that arrive
// without a handler are dropped.
func (c *Channel) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Connect authenticates with the Bot API. Start calls it when needed.
func (c *Channel) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bot != nil {
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(c.cfg.Token)
	if err != nil {
		return fmt.Errorf("telegram init failed: %w", err)
	}
	slog.Info("telegram bot connected", "username", bot.Self.UserName)
	c.bot = bot
	return nil
}

func (c *Channel) Name() string { return channel.Telegram }

// Start long-polls for updates until ctx is done.
func (c *Channel) Start(ctx context.Context) error {
	if err := c.Connect(); err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := c.api().GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			c.handleUpdate(ctx, update)
		}
	}
}

func (c *Channel) Stop(ctx context.Context) error {
	if bot := c.api(); bot != nil {
		bot.StopReceivingUpdates()
	}
	return nil
}

// Send delivers a bridge message to a Telegram chat.
func (c *Channel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	chatID, err := parseInt64(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", msg.ChatID, err)
	}
	_, err = c.SendMessage(ctx, chatID, msg.Content, nil)
	return err
}

// SendMessage sends Markdown text, falling back to plain text only when
// Telegram cannot parse the markup.
func (c *Channel) SendMessage(ctx context.Context, chatID int64, text string, kb command.Keyboard) (int, error) {
	bot := c.api()
	if bot == nil {
		return 0, errBotNotReady
	}

	tgMsg := tgbotapi.NewMessage(chatID, text)
	tgMsg.ParseMode = tgbotapi.ModeMarkdown
	if len(kb) > 0 {
		tgMsg.ReplyMarkup = inlineKeyboard(kb)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	sent, err := bot.Send(tgMsg)
	if err != nil && isParseError(err) {
		slog.Debug("markdown send rejected, retrying as plain text", "chat_id", chatID, "error", err)
		tgMsg.ParseMode = ""
		sent, err = bot.Send(tgMsg)
	}
	if err != nil {
		return 0, fmt.Errorf("send telegram message: %w", err)
	}
	return sent.MessageID, nil
}

// EditMessage replaces the text and buttons of a sent message. A nil kb
// leaves the buttons alone; an empty one removes them. An edit that would
// not change the message is not an error.
func (c *Channel) EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb command.Keyboard) error {
	bot := c.api()
	if bot == nil {
		return errBotNotReady
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if kb != nil {
		markup := inlineKeyboard(kb)
		edit.ReplyMarkup = &markup
	}
	edit.ParseMode = tgbotapi.ModeMarkdown

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := bot.Request(edit)
	if err != nil && isParseError(err) {
		slog.Debug("markdown edit rejected, retrying as plain text", "chat_id", chatID, "message_id", messageID, "error", err)
		edit.ParseMode = ""
		_, err = bot.Request(edit)
	}
	if err != nil && isNotModified(err) {
		slog.Debug("edit left message unchanged", "chat_id", chatID, "message_id", messageID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("edit telegram message: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges a button press, optionally as an alert.
func (c *Channel) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	bot := c.api()
	if bot == nil {
		return errBotNotReady
	}
	cfg := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := bot.Request(cfg); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// SetCommands publishes the bot command menu.
func (c *Channel) SetCommands(ctx context.Context, cmds []command.BotCommand) error {
	bot := c.api()
	if bot == nil {
		return errBotNotReady
	}
	list := make([]tgbotapi.BotCommand, 0, len(cmds))
	for _, cmd := range cmds {
		list = append(list, tgbotapi.BotCommand{Command: cmd.Command, Description: cmd.Description})
	}
	if _, err := bot.Request(tgbotapi.NewSetMyCommands(list...)); err != nil {
		return fmt.Errorf("set bot commands: %w", err)
	}
	return nil
}

func (c *Channel) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		c.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		c.handleCallback(ctx, update.CallbackQuery)
	}
}

func (c *Channel) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return
	}
	if !c.IsAllowed(senderID(msg.From)) {
		slog.Debug("unauthorized sender", "id", msg.From.ID)
		return
	}
	h := c.currentHandler()
	if h == nil {
		return
	}
	h.HandleMessage(ctx, command.Message{
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
	})
}

func (c *Channel) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil {
		return
	}
	if !c.IsAllowed(senderID(cq.From)) {
		slog.Debug("unauthorized callback", "id", cq.From.ID)
		return
	}
	h := c.currentHandler()
	if h == nil {
		return
	}
	cb := command.Callback{ID: cq.ID, UserID: cq.From.ID, Data: cq.Data}
	if cq.Message != nil {
		cb.MessageID = cq.Message.MessageID
		if cq.Message.Chat != nil {
			cb.ChatID = cq.Message.Chat.ID
		}
	}
	h.HandleCallback(ctx, cb)
}

func (c *Channel) api() botAPI {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bot
}

func (c *Channel) currentHandler() Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

func senderID(u *tgbotapi.User) string {
	id := strconv.FormatInt(u.ID, 10)
	if u.UserName == "" {
		return id
	}
	return id + "|" + u.UserName
}

// inlineKeyboard converts kb, keeping an empty keyboard non-nil so that it
// serializes as an empty button list.
func inlineKeyboard(kb command.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// isParseError reports whether Telegram rejected the Markdown entities.
// No other failure is retried: the first attempt may have been delivered.
func isParseError(err error) bool {
	return apiErrorContains(err, "can't parse entities")
}

func isNotModified(err error) bool {
	return apiErrorContains(err, "message is not modified")
}

// apiErrorContains matches the description of a Bot API error, which is
// what *tgbotapi.Error reports from Error().
func apiErrorContains(err error, fragment string) bool {
	return strings.Contains(strings.ToLower(err.Error()), fragment)
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}
