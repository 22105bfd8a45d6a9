package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MEKXH/wabridge/internal/pager"
)

// ContactsCommand implements /contacts [page].
type ContactsCommand struct{}

func (c *ContactsCommand) Kind() Kind          { return KindContacts }
func (c *ContactsCommand) Usage() string       { return "/contacts [page]" }
func (c *ContactsCommand) Description() string { return "List contacts" }

func (c *ContactsCommand) Execute(ctx context.Context, args []string, env Env) error {
	page := 0
	if len(args) > 0 {
		// The argument is 1-based; anything unparsable shows the first page.
		if n, err := strconv.Atoi(args[0]); err == nil {
			page = n - 1
		}
	}
	_, err := showList(ctx, env, pager.KindContacts, "", page, 0)
	return err
}

// SearchContactCommand implements /searchcontact <query>.
type SearchContactCommand struct{}

func (c *SearchContactCommand) Kind() Kind          { return KindSearchContact }
func (c *SearchContactCommand) Usage() string       { return "/searchcontact <name/phone>" }
func (c *SearchContactCommand) Description() string { return "Search WhatsApp contacts" }

func (c *SearchContactCommand) Execute(ctx context.Context, args []string, env Env) error {
	if len(args) == 0 {
		return env.send(ctx, "❌ Usage: /searchcontact <name or phone>\nExample: /searchcontact John")
	}
	query := strings.ToLower(strings.Join(args, " "))

	// The query rides inside the page buttons, so it must fit the largest one.
	widest := pager.Token{
		Kind:      pager.KindSearch,
		Direction: pager.Next,
		Page:      pager.TotalPages(env.Contacts.Len(), env.PageSizes.Search),
		Query:     query,
	}
	if _, err := widest.Encode(); errors.Is(err, pager.ErrTokenTooLong) {
		return env.send(ctx, "❌ Search query is too long. Please use a shorter name or number.")
	}

	_, err := showList(ctx, env, pager.KindSearch, query, 0, 0)
	return err
}

// showList renders one page of the contacts directory or of the matches for
// query, sending a new message or editing messageID when it is non-zero. A
// non-empty render overwrites the chat's pagination session.
func showList(ctx context.Context, env Env, kind pager.Kind, query string, requested, messageID int) (pager.Page, error) {
	var items []pager.Item
	perPage := env.PageSizes.Contacts
	if kind == pager.KindSearch {
		items = env.Contacts.Search(query)
		perPage = env.PageSizes.Search
	} else {
		items = env.Contacts.Items()
	}

	page := pager.Paginate(items, requested, perPage)
	if page.Empty() {
		_, err := env.reply(ctx, messageID, emptyListText(kind, query), nil)
		return page, err
	}

	kb, err := navigationKeyboard(page.Navigation(kind, query))
	if err != nil {
		return page, err
	}

	id, err := env.reply(ctx, messageID, listText(kind, query, page), kb)
	if err != nil {
		return page, err
	}

	if env.Sessions != nil {
		env.Sessions.Put(env.ChatID, pager.Session{
			Kind:       kind,
			Query:      query,
			Page:       page.Index,
			TotalPages: page.TotalPages,
			TotalItems: page.TotalItems,
			MessageID:  id,
			UpdatedAt:  env.now(),
		})
	}
	return page, nil
}

func emptyListText(kind pager.Kind, query string) string {
	if kind == pager.KindSearch {
		return fmt.Sprintf("❌ No contacts found for \"%s\"", query)
	}
	return "⚠️ No contacts found."
}

func listText(kind pager.Kind, query string, page pager.Page) string {
	var sb strings.Builder
	if kind == pager.KindSearch {
		sb.WriteString(fmt.Sprintf("🔍 *Search Results for \"%s\"*\n", query))
		sb.WriteString(fmt.Sprintf("📊 Found %d matches\n", page.TotalItems))
	} else {
		sb.WriteString(fmt.Sprintf("📞 *Contacts (%d total)*\n", page.TotalItems))
	}
	sb.WriteString(fmt.Sprintf("📄 Page %d of %d\n\n", page.Index+1, page.TotalPages))
	sb.WriteString(page.Listing())
	return sb.String()
}

// navigationKeyboard lays the tokens out as a single row, or returns nil when
// there are none.
func navigationKeyboard(tokens []pager.Token) (Keyboard, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	row := make([]Button, 0, len(tokens))
	for _, tok := range tokens {
		data, err := tok.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode navigation: %w", err)
		}
		row = append(row, Button{Text: tok.Direction.Label(), Data: data})
	}
	return Keyboard{row}, nil
}
