package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestManager_FiltersPersistAcrossLoad(t *testing.T) {
	baseDir := t.TempDir()
	mgr := NewManager(baseDir)
	if err := mgr.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if err := mgr.AddFilter("  Spam "); err != nil {
		t.Fatalf("AddFilter error: %v", err)
	}
	if err := mgr.AddFilter("spam"); err != nil {
		t.Fatalf("AddFilter error: %v", err)
	}
	if err := mgr.AddFilter("promo code"); err != nil {
		t.Fatalf("AddFilter error: %v", err)
	}

	reloaded := NewManager(baseDir)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	got := reloaded.Filters()
	if len(got) != 2 || got[0] != "spam" || got[1] != "promo code" {
		t.Fatalf("unexpected filters %v", got)
	}
}

func TestManager_Blocked(t *testing.T) {
	mgr := NewManager(t.TempDir())
	_ = mgr.Load()
	_ = mgr.AddFilter("spam")

	if !mgr.Blocked("SPAM offer inside") {
		t.Fatal("expected prefix match ignoring case")
	}
	if mgr.Blocked("this is spam") {
		t.Fatal("expected only prefix matches to block")
	}
	if mgr.Blocked("") {
		t.Fatal("expected empty text never blocked")
	}

	if err := mgr.ClearFilters(); err != nil {
		t.Fatalf("ClearFilters error: %v", err)
	}
	if mgr.Blocked("spam offer") {
		t.Fatal("expected no block after clear")
	}
}

func TestManager_Authenticated(t *testing.T) {
	baseDir := t.TempDir()
	mgr := NewManager(baseDir)
	_ = mgr.Load()

	if mgr.IsAuthenticated(42) {
		t.Fatal("expected unauthenticated user")
	}
	if err := mgr.MarkAuthenticated(42); err != nil {
		t.Fatalf("MarkAuthenticated error: %v", err)
	}

	reloaded := NewManager(baseDir)
	_ = reloaded.Load()
	if !reloaded.IsAuthenticated(42) {
		t.Fatal("expected authentication to persist")
	}
}

func TestManager_Load_CorruptFileReturnsEmpty(t *testing.T) {
	baseDir := t.TempDir()
	mgr := NewManager(baseDir)

	stateFile := filepath.Join(baseDir, "state", "bridge.json")
	if err := os.MkdirAll(filepath.Dir(stateFile), 0755); err != nil {
		t.Fatalf("MkdirAll error: %v", err)
	}
	if err := os.WriteFile(stateFile, []byte("{broken"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	if err := mgr.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(mgr.Filters()) != 0 || mgr.IsAuthenticated(1) {
		t.Fatal("expected empty state on corrupt file")
	}
}

func TestManager_FailedSaveLeavesStateUnchanged(t *testing.T) {
	baseDir := t.TempDir()
	mgr := NewManager(baseDir)
	if err := mgr.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := mgr.AddFilter("spam"); err != nil {
		t.Fatalf("AddFilter error: %v", err)
	}

	// A directory in place of the state file makes every write fail.
	path := filepath.Join(baseDir, "state", "bridge.json")
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove state file: %v", err)
	}
	if err := os.Mkdir(path, 0755); err != nil {
		t.Fatalf("mkdir in place of state file: %v", err)
	}

	if err := mgr.AddFilter("promo"); err == nil {
		t.Fatal("expected AddFilter to fail")
	}
	if mgr.Blocked("promo today") {
		t.Fatal("unsaved filter must not block messages")
	}
	if err := mgr.ClearFilters(); err == nil {
		t.Fatal("expected ClearFilters to fail")
	}
	if got := mgr.Filters(); len(got) != 1 || got[0] != "spam" {
		t.Fatalf("filters changed after failed saves: %v", got)
	}
	if err := mgr.MarkAuthenticated(7); err == nil {
		t.Fatal("expected MarkAuthenticated to fail")
	}
	if mgr.IsAuthenticated(7) {
		t.Fatal("unsaved login must not authenticate")
	}
}
