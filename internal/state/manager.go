package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

const bridgeStateFileMode = 0600

// BridgeState is the persisted runtime state of the bridge.
type BridgeState struct {
	Filters       []string  `json:"filters"`
	Authenticated []int64   `json:"authenticated_users"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// Manager persists lightweight runtime state and serves it from memory.
type Manager struct {
	path string
	mu   sync.RWMutex
	st   BridgeState
}

// NewManager creates a state manager under <baseDir>/state.
func NewManager(baseDir string) *Manager {
	return &Manager{
		path: filepath.Join(baseDir, "state", "bridge.json"),
	}
}

// Load reads state from disk.
// Missing or malformed files are treated as empty state.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.st = BridgeState{}

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var st BridgeState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil
	}
	for _, f := range st.Filters {
		if f = normalizeFilter(f); f != "" && !slices.Contains(m.st.Filters, f) {
			m.st.Filters = append(m.st.Filters, f)
		}
	}
	for _, id := range st.Authenticated {
		if !slices.Contains(m.st.Authenticated, id) {
			m.st.Authenticated = append(m.st.Authenticated, id)
		}
	}
	m.st.UpdatedAt = st.UpdatedAt
	return nil
}

// Filters returns the blocked words in insertion order.
func (m *Manager) Filters() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.st.Filters)
}

// AddFilter stores a blocked word. Adding an existing word is a no-op.
func (m *Manager) AddFilter(word string) error {
	word = normalizeFilter(word)
	if word == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.st.Filters, word) {
		return nil
	}
	next := m.st
	next.Filters = append(slices.Clip(m.st.Filters), word)
	return m.commitLocked(next)
}

// ClearFilters removes every blocked word.
func (m *Manager) ClearFilters() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.st
	next.Filters = nil
	return m.commitLocked(next)
}

// Blocked reports whether text starts with any blocked word, ignoring case.
func (m *Manager) Blocked(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.st.Filters {
		if strings.HasPrefix(text, f) {
			return true
		}
	}
	return false
}

// IsAuthenticated reports whether userID has logged in.
func (m *Manager) IsAuthenticated(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.st.Authenticated, userID)
}

// MarkAuthenticated records userID as logged in.
func (m *Manager) MarkAuthenticated(userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.st.Authenticated, userID) {
		return nil
	}
	next := m.st
	next.Authenticated = append(slices.Clip(m.st.Authenticated), userID)
	return m.commitLocked(next)
}

// commitLocked writes next to disk and only then makes it the in-memory state.
func (m *Manager) commitLocked(next BridgeState) error {
	next.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(m.path, data, bridgeStateFileMode); err != nil {
		return err
	}
	m.st = next
	return nil
}

func normalizeFilter(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
