package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func capture(t *testing.T) (stdout, stderr *bytes.Buffer) {
	t.Helper()
	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	SetOutput(stdout, stderr)
	SetColorEnabled(false)
	t.Cleanup(func() { SetOutput(nil, nil) })
	return stdout, stderr
}

func TestWarnfErrorf(t *testing.T) {
	_, stderr := capture(t)

	Warnf("skipping %s", "chain 5")
	Errorf("failed: %v", "timeout")

	want := "Warning: skipping chain 5\nError: failed: timeout\n"
	if got := stderr.String(); got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}
}

func TestColor(t *testing.T) {
	SetColorEnabled(true)
	defer SetColorEnabled(false)

	if got := Green("ok"); got != "\033[32mok\033[0m" {
		t.Errorf("Green = %q", got)
	}
	SetColorEnabled(false)
	if got := Green("ok"); got != "ok" {
		t.Errorf("Green without color = %q", got)
	}
}

func TestSection(t *testing.T) {
	stdout, _ := capture(t)
	Section("Signatures")
	if got := stdout.String(); got != "Signatures\n──────────\n" {
		t.Errorf("Section = %q", got)
	}
}

func TestShortHex(t *testing.T) {
	tests := map[string]string{
		"0x2c7536E3605D9C16a7a3D7b1898e529396a65c23": "0x2c75…5c23",
		"0xabc": "0xabc",
		"":      "",
	}
	for in, want := range tests {
		if got := ShortHex(in); got != want {
			t.Errorf("ShortHex(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTimestamp(t *testing.T) {
	SetColorEnabled(false)
	if got := Timestamp(nil); got != "Publishing…" {
		t.Errorf("Timestamp(nil) = %q", got)
	}
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("X", 3600))
	if got := Timestamp(&ts); got != "2024-03-01 11:30:00 UTC" {
		t.Errorf("Timestamp = %q", got)
	}
}

func TestTable(t *testing.T) {
	stdout, _ := capture(t)
	tbl := NewTable("INDEX", "SIGNER")
	tbl.Row(0, "0xabc")
	tbl.Row(12, "0xdef")
	if err := tbl.Flush(); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), stdout.String())
	}
	if lines[1] != "0      0xabc" {
		t.Errorf("row = %q", lines[1])
	}
}

func TestConfirm(t *testing.T) {
	_, stderr := capture(t)
	defer SetInput(nil)

	for in, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "yes": true} {
		SetInput(strings.NewReader(in))
		got, err := Confirm("Publish?")
		if err != nil {
			t.Fatalf("Confirm(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("Confirm(%q) = %v, want %v", in, got, want)
		}
	}
	if !strings.Contains(stderr.String(), "Publish? [y/N]: ") {
		t.Errorf("prompt not written: %q", stderr.String())
	}

	SetInput(strings.NewReader(""))
	if _, err := Confirm("Publish?"); err == nil {
		t.Error("expected error on empty input")
	}
}

func TestReadSecret_Piped(t *testing.T) {
	capture(t)
	defer SetInput(nil)

	SetInput(strings.NewReader("  0xdeadbeef \n"))
	got, err := ReadSecret("Private key")
	if err != nil {
		t.Fatal(err)
	}
	if got != "0xdeadbeef" {
		t.Errorf("ReadSecret = %q", got)
	}
}
