package command

import (
	"context"
	"time"

	"github.com/MEKXH/wabridge/internal/audit"
	"github.com/MEKXH/wabridge/internal/contacts"
	"github.com/MEKXH/wabridge/internal/metrics"
	"github.com/MEKXH/wabridge/internal/pager"
)

// Button is an inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is a set of button rows. An empty keyboard on an edit clears the
// buttons of the edited message.
type Keyboard [][]Button

// BotCommand is one entry of the platform command menu.
type BotCommand struct {
	Command     string
	Description string
}

// Messenger is the chat platform as seen by commands.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	SetCommands(ctx context.Context, cmds []BotCommand) error
}

// WhatsApp is the messaging client as seen by commands.
type WhatsApp interface {
	// SendText returns the platform message id, or "" when the send was not confirmed.
	SendText(ctx context.Context, jid, text string) (string, error)
	FetchContacts(ctx context.Context) ([]contacts.Contact, error)
	Status() (connected bool, userName string)
}

// Contacts is the contact directory.
type Contacts interface {
	Items() []pager.Item
	Search(query string) []pager.Item
	Len() int
	Merge(ctx context.Context, list []contacts.Contact) (int, error)
}

// Filters is the blocked-word set.
type Filters interface {
	Filters() []string
	AddFilter(word string) error
	ClearFilters() error
}

// Authenticator gates access to every command but /password.
type Authenticator interface {
	IsAuthenticated(userID int64) bool
	Authenticate(userID int64, password string) (bool, error)
}

// Mappings reports how many WhatsApp chats and users the bridge has seen.
type Mappings interface {
	ChatCount() int
	UserCount() int
}

// PageSizes holds items per page for each list.
type PageSizes struct {
	Contacts int
	Search   int
}

// Deps are the collaborators shared by all commands.
type Deps struct {
	Out       Messenger
	WhatsApp  WhatsApp
	Contacts  Contacts
	Filters   Filters
	Auth      Authenticator
	Mappings  Mappings
	Sessions  *pager.SessionStore
	Metrics   *metrics.RuntimeMetrics
	Audit     *audit.Writer
	PageSizes PageSizes
	StartedAt time.Time
	Now       func() time.Time
}

// Env carries per-invocation context for a command.
type Env struct {
	*Deps
	ChatID       int64
	UserID       int64
	ListCommands func() []Command // for the help menu
}

// reply sends text, or edits messageID when it is non-zero. It returns the
// id of the message now showing text.
func (e Env) reply(ctx context.Context, messageID int, text string, kb Keyboard) (int, error) {
	if messageID != 0 {
		if kb == nil {
			kb = Keyboard{}
		}
		return messageID, e.Out.EditMessage(ctx, e.ChatID, messageID, text, kb)
	}
	return e.Out.SendMessage(ctx, e.ChatID, text, kb)
}

func (e Env) send(ctx context.Context, text string) error {
	_, err := e.Out.SendMessage(ctx, e.ChatID, text, nil)
	return err
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
