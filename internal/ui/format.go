package ui

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

// ShortHex abbreviates a 0x-prefixed hex string to 0x1234…abcd.
func ShortHex(s string) string {
	if len(s) <= 14 {
		return s
	}
	return s[:6] + "…" + s[len(s)-4:]
}

// Timestamp formats t in UTC, or "Publishing…" for records without one.
func Timestamp(t *time.Time) string {
	if t == nil {
		return Yellow("Publishing…")
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// Table writes aligned columns to stdout.
type Table struct {
	w *tabwriter.Writer
}

// NewTable starts a table with the given header.
func NewTable(header ...string) *Table {
	t := &Table{w: tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)}
	if len(header) > 0 {
		t.Row(toAny(header)...)
	}
	return t
}

// Row appends one row.
func (t *Table) Row(cells ...any) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(t.w, strings.Join(parts, "\t"))
}

// Flush writes buffered rows.
func (t *Table) Flush() error { return t.w.Flush() }

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
