package pager

import (
	"fmt"
	"strings"
)

// UnknownLabel is shown for items without a label.
const UnknownLabel = "Unknown"

// Item is one listable entry, e.g. a phone number and its display name.
type Item struct {
	Key   string
	Label string
}

// DisplayLabel returns the label or UnknownLabel when it is empty.
func (i Item) DisplayLabel() string {
	if strings.TrimSpace(i.Label) == "" {
		return UnknownLabel
	}
	return i.Label
}

// Page is the visible window of a list.
type Page struct {
	Items      []Item
	Index      int // zero-based, always in [0, TotalPages-1]
	TotalPages int
	TotalItems int
	Offset     int // position of Items[0] in the full list
}

// TotalPages returns ceil(n/perPage), with an empty list counting as one page.
func TotalPages(n, perPage int) int {
	if perPage <= 0 {
		perPage = 1
	}
	if n <= 0 {
		return 1
	}
	return (n + perPage - 1) / perPage
}

// Paginate slices items for the requested page. Out-of-range requests are
// clamped to the first or last page.
func Paginate(items []Item, requested, perPage int) Page {
	if perPage <= 0 {
		perPage = 1
	}
	total := TotalPages(len(items), perPage)

	index := requested
	if index < 0 {
		index = 0
	}
	if index > total-1 {
		index = total - 1
	}

	start := index * perPage
	if start > len(items) {
		start = len(items)
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}

	return Page{
		Items:      items[start:end],
		Index:      index,
		TotalPages: total,
		TotalItems: len(items),
		Offset:     start,
	}
}

// Empty reports whether the underlying list has no items.
func (p Page) Empty() bool { return p.TotalItems == 0 }

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.Index > 0 }

// HasNext reports whether a next page exists.
func (p Page) HasNext() bool { return p.Index < p.TotalPages-1 }

// Lines renders each item as a 1-based ordinal line.
func (p Page) Lines() []string {
	lines := make([]string, 0, len(p.Items))
	for i, item := range p.Items {
		lines = append(lines, fmt.Sprintf("%d. 📱 %s (+%s)", p.Offset+i+1, item.DisplayLabel(), item.Key))
	}
	return lines
}

// Listing joins Lines with newlines.
func (p Page) Listing() string {
	return strings.Join(p.Lines(), "\n")
}

// Navigation returns the prev/next tokens for the page, prev first.
func (p Page) Navigation(kind Kind, query string) []Token {
	var tokens []Token
	if p.HasPrev() {
		tokens = append(tokens, Token{Kind: kind, Direction: Prev, Page: p.Index - 1, Query: query})
	}
	if p.HasNext() {
		tokens = append(tokens, Token{Kind: kind, Direction: Next, Page: p.Index + 1, Query: query})
	}
	return tokens
}

// Filter returns the items whose key or label contains query, ignoring case.
// An empty query matches everything.
func Filter(items []Item, query string) []Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	var out []Item
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Key), q) || strings.Contains(strings.ToLower(item.Label), q) {
			out = append(out, item)
		}
	}
	return out
}
