package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/majorcontext/opensig/internal/signature"
	"github.com/majorcontext/opensig/internal/ui"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newestFirst returns a copy of rs ordered by descending chain position.
func newestFirst(rs []signature.Record) []signature.Record {
	out := append([]signature.Record(nil), rs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index > out[j].Index })
	return out
}

func annotationText(r signature.Record) string {
	text := r.Annotation.Text()
	if r.Annotation.Encrypted {
		text = "🔒 " + text
	}
	if len(text) > 60 {
		text = text[:57] + "..."
	}
	if text == "" {
		return ui.Dim("—")
	}
	return text
}

func printRecords(rs []signature.Record) error {
	if len(rs) == 0 {
		ui.Printf("  %s\n", ui.Dim("no signatures"))
		return nil
	}
	t := ui.NewTable("  #", "TIME", "SIGNER", "ANNOTATION")
	for _, r := range newestFirst(rs) {
		t.Row(fmt.Sprintf("  %d", r.Index), ui.Timestamp(r.Time), r.SignerID(), annotationText(r))
	}
	return t.Flush()
}
