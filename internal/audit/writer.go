// Package audit keeps an append-only record of bot commands.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	auditFileMode = 0600
	auditDirMode  = 0755
)

// Event types.
const (
	TypeCommand = "command"
	TypeDenied  = "denied"
)

// Event is one audit record written as a single JSON line. Command
// arguments are never recorded.
type Event struct {
	Time    time.Time `json:"time"`
	Type    string    `json:"type"`
	ChatID  int64     `json:"chat_id"`
	UserID  int64     `json:"user_id"`
	Command string    `json:"command,omitempty"`
	Result  string    `json:"result,omitempty"`
}

// Writer appends audit events to <dataDir>/state/audit.jsonl.
type Writer struct {
	path string
	mu   sync.Mutex
}

// NewWriter creates an append-only audit writer rooted at dataDir.
func NewWriter(dataDir string) *Writer {
	return &Writer{
		path: filepath.Join(dataDir, "state", "audit.jsonl"),
	}
}

// Path returns the audit log location.
func (w *Writer) Path() string { return w.path }

// Append writes one event as one JSONL line. A nil writer discards events.
func (w *Writer) Append(event Event) error {
	if w == nil {
		return nil
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	encoded = append(encoded, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), auditDirMode); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, auditFileMode)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(encoded); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
