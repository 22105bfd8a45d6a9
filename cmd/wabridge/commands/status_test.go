package commands

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/MEKXH/wabridge/internal/config"
	"github.com/MEKXH/wabridge/internal/contacts"
	"github.com/MEKXH/wabridge/internal/metrics"
	"github.com/MEKXH/wabridge/internal/state"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func TestStatusCommand_PrintsConfig(t *testing.T) {
	isolateHome(t)

	output := stripANSI(captureOutput(t, func() {
		if err := runStatus(nil, nil); err != nil {
			t.Fatalf("runStatus error: %v", err)
		}
	}))

	for _, want := range []string{"wabridge Status", "Config", "Path:", "Channels", "Telegram", "WhatsApp", "Gateway", "Runtime Metrics", "no runtime data yet", "none synced yet"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in status output, got: %s", want, output)
		}
	}
}

func TestStatusCommand_ShowsStoredState(t *testing.T) {
	isolateHome(t)
	dataDir := config.DefaultConfig().DataDir()

	store, err := contacts.OpenSQLiteStore(filepath.Join(dataDir, contactsDBName))
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	if err := store.Save(context.Background(), []contacts.Contact{{Phone: "15550001111", Name: "Alice"}, {Phone: "15550002222", Name: "Bob"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_ = store.Close()

	st := state.NewManager(dataDir)
	if err := st.AddFilter("promo"); err != nil {
		t.Fatalf("AddFilter: %v", err)
	}

	recorder := metrics.NewRuntimeMetrics(dataDir)
	if _, err := recorder.RecordCommand("contacts", 20*time.Millisecond, nil); err != nil {
		t.Fatalf("RecordCommand: %v", err)
	}

	output := stripANSI(captureOutput(t, func() {
		if err := runStatus(nil, nil); err != nil {
			t.Fatalf("runStatus error: %v", err)
		}
	}))

	for _, want := range []string{"2 stored", "promo", "1 total, 0 errors"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in status output, got: %s", want, output)
		}
	}
}
