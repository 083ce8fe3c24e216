package messages

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile_Defaults(t *testing.T) {
	m, err := loadFile("")
	if err != nil {
		t.Fatalf("loadFile(\"\") error = %v", err)
	}
	if m.RunAuthFirst != "At first you should run /auth command" {
		t.Errorf("RunAuthFirst = %q", m.RunAuthFirst)
	}
}

func TestLoadFile_OverridesKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	if err := os.WriteFile(path, []byte(`{"busy":"Try later"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := loadFile(path)
	if err != nil {
		t.Fatalf("loadFile() error = %v", err)
	}
	if m.Busy != "Try later" {
		t.Errorf("Busy = %q, want %q", m.Busy, "Try later")
	}
	if m.NoTransactions != Default().NoTransactions {
		t.Errorf("NoTransactions = %q, want default", m.NoTransactions)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := loadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadFile(path); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
