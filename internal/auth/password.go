package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrNoPassword is returned when neither a password nor a hash is configured.
var ErrNoPassword = errors.New("no bridge password configured")

// Sessions records which users have authenticated.
type Sessions interface {
	IsAuthenticated(userID int64) bool
	MarkAuthenticated(userID int64) error
}

// Authenticator gates bot access behind a shared password.
type Authenticator struct {
	hash     []byte
	plain    string
	sessions Sessions
}

// NewAuthenticator builds an authenticator. A bcrypt hash takes precedence
// over a plain-text password.
func NewAuthenticator(password, passwordHash string, sessions Sessions) (*Authenticator, error) {
	passwordHash = strings.TrimSpace(passwordHash)
	if passwordHash == "" && password == "" {
		return nil, ErrNoPassword
	}
	a := &Authenticator{plain: password, sessions: sessions}
	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("invalid password hash: %w", err)
		}
		a.hash = []byte(passwordHash)
		a.plain = ""
	}
	return a, nil
}

// HashPassword returns a bcrypt hash suitable for auth.password_hash.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// IsAuthenticated reports whether userID may use the bot.
func (a *Authenticator) IsAuthenticated(userID int64) bool {
	return a.sessions.IsAuthenticated(userID)
}

// Authenticate checks password and, on success, remembers userID.
func (a *Authenticator) Authenticate(userID int64, password string) (bool, error) {
	if !a.matches(password) {
		slog.Warn("authentication failed", "user_id", userID)
		return false, nil
	}
	if err := a.sessions.MarkAuthenticated(userID); err != nil {
		return true, fmt.Errorf("persist authentication: %w", err)
	}
	slog.Info("user authenticated", "user_id", userID)
	return true, nil
}

func (a *Authenticator) matches(password string) bool {
	if a.hash != nil {
		return bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(a.plain), []byte(password)) == 1
}
