package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MEKXH/wabridge/internal/contacts"
	"github.com/MEKXH/wabridge/internal/pager"
)

type sentMessage struct {
	ChatID int64
	ID     int
	Text   string
	KB     Keyboard
}

type editedMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	KB        Keyboard
}

type answer struct {
	ID    string
	Text  string
	Alert bool
}

type fakeMessenger struct {
	mu       sync.Mutex
	nextID   int
	sent     []sentMessage
	edits    []editedMessage
	answers  []answer
	commands []BotCommand
	sendErr  error
	editErr  error
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, kb Keyboard) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	id := 100 + f.nextID
	f.sent = append(f.sent, sentMessage{ChatID: chatID, ID: id, Text: text, KB: kb})
	return id, nil
}

func (f *fakeMessenger) EditMessage(_ context.Context, chatID int64, messageID int, text string, kb Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, editedMessage{ChatID: chatID, MessageID: messageID, Text: text, KB: kb})
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, id, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answer{ID: id, Text: text, Alert: alert})
	return nil
}

func (f *fakeMessenger) SetCommands(_ context.Context, cmds []BotCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = cmds
	return nil
}

func (f *fakeMessenger) lastSent() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMessage{}
	}
	return f.sent[len(f.sent)-1]
}

type fakeWhatsApp struct {
	sentTo   string
	sentText string
	sendID   string
	sendErr  error
	list     []contacts.Contact
	fetchErr error
	user     string
}

func (f *fakeWhatsApp) SendText(_ context.Context, jid, text string) (string, error) {
	f.sentTo, f.sentText = jid, text
	return f.sendID, f.sendErr
}

func (f *fakeWhatsApp) FetchContacts(context.Context) ([]contacts.Contact, error) {
	return f.list, f.fetchErr
}

func (f *fakeWhatsApp) Status() (bool, string) { return f.user != "", f.user }

type fakeFilters struct {
	words []string
}

func (f *fakeFilters) Filters() []string { return append([]string(nil), f.words...) }

func (f *fakeFilters) AddFilter(word string) error {
	f.words = append(f.words, word)
	return nil
}

func (f *fakeFilters) ClearFilters() error {
	f.words = nil
	return nil
}

type fakeAuth struct {
	password string
	users    map[int64]bool
}

func (f *fakeAuth) IsAuthenticated(userID int64) bool { return f.users[userID] }

func (f *fakeAuth) Authenticate(userID int64, password string) (bool, error) {
	if password != f.password {
		return false, nil
	}
	if f.users == nil {
		f.users = make(map[int64]bool)
	}
	f.users[userID] = true
	return true, nil
}

type fakeMappings struct{ chats, users int }

func (f fakeMappings) ChatCount() int { return f.chats }
func (f fakeMappings) UserCount() int { return f.users }

const (
	testChatID int64 = 42
	testUserID int64 = 7
)

type harness struct {
	out  *fakeMessenger
	wa   *fakeWhatsApp
	dir  *contacts.Directory
	auth *fakeAuth
	deps *Deps
	d    *Dispatcher
}

func newHarness(list ...contacts.Contact) *harness {
	h := &harness{
		out:  &fakeMessenger{},
		wa:   &fakeWhatsApp{},
		dir:  contacts.NewDirectory(nil),
		auth: &fakeAuth{password: "secret", users: map[int64]bool{testUserID: true}},
	}
	if len(list) > 0 {
		if _, err := h.dir.Merge(context.Background(), list); err != nil {
			panic(err)
		}
	}
	h.deps = &Deps{
		Out:       h.out,
		WhatsApp:  h.wa,
		Contacts:  h.dir,
		Filters:   &fakeFilters{},
		Auth:      h.auth,
		Mappings:  fakeMappings{chats: 3, users: 2},
		Sessions:  pager.NewSessionStore(),
		PageSizes: PageSizes{Contacts: 20, Search: 15},
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local),
		Now:       func() time.Time { return time.Date(2026, 1, 3, 4, 5, 6, 0, time.Local) },
	}
	h.d = NewDispatcher(h.deps, nil)
	return h
}

func (h *harness) message(text string) {
	h.d.HandleMessage(context.Background(), Message{ChatID: testChatID, UserID: testUserID, MessageID: 1, Text: text})
}

func (h *harness) press(data string, messageID int) {
	h.d.HandleCallback(context.Background(), Callback{ID: "cb", ChatID: testChatID, UserID: testUserID, MessageID: messageID, Data: data})
}

func numberedContacts(n int) []contacts.Contact {
	list := make([]contacts.Contact, 0, n)
	for i := 1; i <= n; i++ {
		list = append(list, contacts.Contact{
			Phone: fmt.Sprintf("1000000%03d", i),
			Name:  fmt.Sprintf("Contact %d", i),
		})
	}
	return list
}

func buttonData(kb Keyboard) []string {
	var out []string
	for _, row := range kb {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}
