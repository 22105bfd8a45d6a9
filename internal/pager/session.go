package pager

import (
	"sync"
	"time"
)

// Session records the last list rendered in a chat so that navigation can
// edit the same message.
type Session struct {
	Kind       Kind
	Query      string
	Page       int
	TotalPages int
	TotalItems int
	MessageID  int
	UpdatedAt  time.Time
}

// SessionStore keeps one Session per chat. Entries are only ever overwritten.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]Session)}
}

// Put overwrites the session for chatID.
func (s *SessionStore) Put(chatID int64, sess Session) {
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[chatID] = sess
}

// Get returns the session for chatID, if any.
func (s *SessionStore) Get(chatID int64) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[chatID]
	return sess, ok
}

// Len returns the number of chats with a session.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
