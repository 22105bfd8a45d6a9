package pager

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxTokenLen is the largest callback payload Telegram accepts.
const MaxTokenLen = 64

const tokenSep = "_"

var (
	// ErrMalformedToken is returned by DecodeToken for any payload it cannot parse.
	ErrMalformedToken = errors.New("malformed navigation token")
	// ErrTokenTooLong is returned by Encode when the payload exceeds MaxTokenLen.
	ErrTokenTooLong = errors.New("navigation token too long")
)

// Kind identifies which list a token navigates.
type Kind string

const (
	KindContacts Kind = "contacts"
	KindSearch   Kind = "search"
)

func (k Kind) valid() bool { return k == KindContacts || k == KindSearch }

// Direction of a navigation step.
type Direction string

const (
	Prev Direction = "prev"
	Next Direction = "next"
)

// Label returns the button caption for the direction.
func (d Direction) Label() string {
	if d == Prev {
		return "⬅️ Previous"
	}
	return "Next ➡️"
}

// Token carries a navigation step. Search tokens embed the query so that a
// button press can be served without server-side state.
type Token struct {
	Kind      Kind
	Direction Direction
	Page      int
	Query     string
}

// Encode serializes the token as kind_dir_page[_base64(query)].
// Standard base64 never contains the separator.
func (t Token) Encode() (string, error) {
	if !t.Kind.valid() {
		return "", fmt.Errorf("unknown token kind %q", t.Kind)
	}
	if t.Direction != Prev && t.Direction != Next {
		return "", fmt.Errorf("unknown token direction %q", t.Direction)
	}
	if t.Page < 0 {
		return "", fmt.Errorf("negative token page %d", t.Page)
	}

	parts := []string{string(t.Kind), string(t.Direction), strconv.Itoa(t.Page)}
	if t.Kind == KindSearch {
		parts = append(parts, base64.StdEncoding.EncodeToString([]byte(t.Query)))
	}
	raw := strings.Join(parts, tokenSep)
	if len(raw) > MaxTokenLen {
		return "", fmt.Errorf("%w: %d bytes", ErrTokenTooLong, len(raw))
	}
	return raw, nil
}

// DecodeToken parses and validates a raw token.
func DecodeToken(raw string) (Token, error) {
	if raw == "" || len(raw) > MaxTokenLen {
		return Token{}, ErrMalformedToken
	}
	parts := strings.Split(raw, tokenSep)

	kind := Kind(parts[0])
	if !kind.valid() {
		return Token{}, fmt.Errorf("%w: kind %q", ErrMalformedToken, parts[0])
	}
	want := 3
	if kind == KindSearch {
		want = 4
	}
	if len(parts) != want {
		return Token{}, fmt.Errorf("%w: %d fields", ErrMalformedToken, len(parts))
	}

	dir := Direction(parts[1])
	if dir != Prev && dir != Next {
		return Token{}, fmt.Errorf("%w: direction %q", ErrMalformedToken, parts[1])
	}

	page, err := strconv.Atoi(parts[2])
	if err != nil || page < 0 {
		return Token{}, fmt.Errorf("%w: page %q", ErrMalformedToken, parts[2])
	}

	tok := Token{Kind: kind, Direction: dir, Page: page}
	if kind == KindSearch {
		q, err := base64.StdEncoding.DecodeString(parts[3])
		if err != nil {
			return Token{}, fmt.Errorf("%w: query: %v", ErrMalformedToken, err)
		}
		if len(q) == 0 {
			return Token{}, fmt.Errorf("%w: empty query", ErrMalformedToken)
		}
		tok.Query = string(q)
	}
	return tok, nil
}
