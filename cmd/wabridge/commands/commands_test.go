package commands

import (
	"bytes"
	"io"
	"os"
	"testing"
)

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}

	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	_ = r.Close()

	return buf.String()
}

func isolateHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("USERPROFILE", tmpDir)
	t.Setenv("WABRIDGE_HOME", "")
	return tmpDir
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"init", "run", "status", "channels", "password", "version"} {
		if _, _, err := root.Find([]string{name}); err != nil {
			t.Fatalf("expected subcommand %q: %v", name, err)
		}
	}
	if root.PersistentFlags().Lookup("log-level") == nil {
		t.Fatal("expected --log-level flag")
	}
}
