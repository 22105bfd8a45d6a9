package contacts

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/MEKXH/wabridge/internal/pager"
)

// Contact is a WhatsApp contact keyed by phone number (digits only).
type Contact struct {
	Phone string
	Name  string
}

// Store persists the directory.
type Store interface {
	Load(ctx context.Context) ([]Contact, error)
	Save(ctx context.Context, contacts []Contact) error
}

// Directory is the in-memory phone -> name mapping. Iteration follows
// first-seen order.
type Directory struct {
	mu    sync.RWMutex
	order []string
	names map[string]string
	store Store
}

// NewDirectory creates a directory backed by store. store may be nil.
func NewDirectory(store Store) *Directory {
	return &Directory{
		names: make(map[string]string),
		store: store,
	}
}

// Load replaces the in-memory contents with what the store holds.
func (d *Directory) Load(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	list, err := d.store.Load(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.order = d.order[:0]
	d.names = make(map[string]string, len(list))
	for _, c := range list {
		d.putLocked(c)
	}
	return nil
}

// Merge adds or renames contacts and persists the result. It returns the
// number of entries that were added or changed.
func (d *Directory) Merge(ctx context.Context, list []Contact) (int, error) {
	d.mu.Lock()
	changed := 0
	for _, c := range list {
		if d.putLocked(c) {
			changed++
		}
	}
	snapshot := d.snapshotLocked()
	d.mu.Unlock()

	if changed == 0 || d.store == nil {
		return changed, nil
	}
	return changed, d.store.Save(ctx, snapshot)
}

// Observe records a contact seen on an inbound message. Persistence errors
// are logged, not returned.
func (d *Directory) Observe(ctx context.Context, c Contact) {
	if _, err := d.Merge(ctx, []Contact{c}); err != nil {
		slog.Warn("persist observed contact failed", "phone", c.Phone, "error", err)
	}
}

// Name returns the display name for phone.
func (d *Directory) Name(phone string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.names[NormalizePhone(phone)]
	return name, ok
}

// Len returns the number of contacts.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

// Items returns the contacts as pager items in directory order.
func (d *Directory) Items() []pager.Item {
	d.mu.RLock()
	defer d.mu.RUnlock()
	items := make([]pager.Item, 0, len(d.order))
	for _, phone := range d.order {
		items = append(items, pager.Item{Key: phone, Label: d.names[phone]})
	}
	return items
}

// Search returns contacts whose phone or name contains query, ignoring case.
func (d *Directory) Search(query string) []pager.Item {
	return pager.Filter(d.Items(), query)
}

func (d *Directory) putLocked(c Contact) bool {
	phone := NormalizePhone(c.Phone)
	if phone == "" {
		return false
	}
	name := strings.TrimSpace(c.Name)
	prev, exists := d.names[phone]
	if !exists {
		d.order = append(d.order, phone)
		d.names[phone] = name
		return true
	}
	if name == "" || name == prev {
		return false
	}
	d.names[phone] = name
	return true
}

func (d *Directory) snapshotLocked() []Contact {
	out := make([]Contact, 0, len(d.order))
	for _, phone := range d.order {
		out = append(out, Contact{Phone: phone, Name: d.names[phone]})
	}
	return out
}

// NormalizePhone strips a JID suffix and every non-digit.
func NormalizePhone(s string) string {
	if at := strings.IndexByte(s, '@'); at >= 0 {
		s = s[:at]
	}
	if colon := strings.IndexByte(s, ':'); colon >= 0 {
		s = s[:colon]
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// JID returns the WhatsApp user JID for a phone number.
func JID(phone string) string {
	return NormalizePhone(phone) + "@s.whatsapp.net"
}
