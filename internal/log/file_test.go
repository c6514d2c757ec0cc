package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileWriter_Write(t *testing.T) {
	tmpDir := t.TempDir()

	fw, err := NewFileWriter(tmpDir)
	if err != nil {
		t.Fatalf("NewFileWriter failed: %v", err)
	}
	defer fw.Close()

	if _, err := fw.Write([]byte(`{"msg":"test"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, FileName(time.Now())))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(content), `{"msg":"test"}`) {
		t.Errorf("unexpected content: %s", content)
	}

	info, err := os.Stat(filepath.Join(tmpDir, FileName(time.Now())))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("log file mode = %o, want 600", perm)
	}
}

func TestFileWriter_Rotates(t *testing.T) {
	tmpDir := t.TempDir()

	fw, err := NewFileWriter(tmpDir)
	if err != nil {
		t.Fatalf("NewFileWriter failed: %v", err)
	}
	defer fw.Close()

	tomorrow := time.Now().AddDate(0, 0, 1)
	fw.now = func() time.Time { return tomorrow }
	if _, err := fw.Write([]byte("next day\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, FileName(tomorrow)))
	if err != nil {
		t.Fatalf("expected rotated file: %v", err)
	}
	if string(content) != "next day\n" {
		t.Errorf("unexpected content: %q", content)
	}

	target, err := os.Readlink(filepath.Join(tmpDir, currentLink))
	if err != nil {
		t.Fatalf("reading symlink: %v", err)
	}
	if target != FileName(tomorrow) {
		t.Errorf("current link points to %s, want %s", target, FileName(tomorrow))
	}
}

func TestCleanup(t *testing.T) {
	tmpDir := t.TempDir()

	old := filepath.Join(tmpDir, FileName(time.Now().AddDate(0, 0, -30)))
	recent := filepath.Join(tmpDir, FileName(time.Now().AddDate(0, 0, -1)))
	other := filepath.Join(tmpDir, "notes.txt")
	for _, p := range []string{old, recent, other} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	Cleanup(tmpDir, 14)

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old log file should be removed")
	}
	if _, err := os.Stat(recent); err != nil {
		t.Error("recent log file should be kept")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("unrelated files should be kept")
	}
}
