package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/majorcontext/opensig/internal/journal"
	"github.com/majorcontext/opensig/internal/ui"
)

var (
	historyCheck bool
	historyKind  string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the local activity journal",
	Long: `Show past verify, publish and confirm operations. The journal is a
hash-chained SQLite log; --check verifies that no entry was edited or
removed.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolVar(&historyCheck, "check", false, "verify the journal's hash chain")
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "only show entries of this kind (verify, publish, confirm)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum entries to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if state.cfg.Journal.Disabled {
		return errors.New("the journal is disabled in config")
	}
	store := openJournal(ctx)
	if store == nil {
		return fmt.Errorf("journal unavailable at %s", state.cfg.JournalPath())
	}

	if historyCheck {
		res, err := store.Check(ctx)
		if err != nil {
			return err
		}
		if jsonOut {
			if err := writeJSON(ui.Stdout(), res); err != nil {
				return err
			}
		} else if res.Valid {
			ui.Printf("%s %d entries, hash chain intact\n", ui.OKTag(), res.Entries)
		} else {
			ui.Printf("%s %s\n", ui.FailTag(), res.Error)
		}
		if !res.Valid {
			return fmt.Errorf("journal broken at entry %d", res.BrokenAt)
		}
		return nil
	}

	switch journal.Kind(historyKind) {
	case "", journal.KindVerify, journal.KindPublish, journal.KindConfirm:
	default:
		return fmt.Errorf("unknown kind %q", historyKind)
	}
	entries, err := store.List(ctx, journal.ListOptions{Kind: journal.Kind(historyKind), Limit: historyLimit})
	if err != nil {
		return err
	}
	if jsonOut {
		if entries == nil {
			entries = []*journal.Entry{}
		}
		return writeJSON(ui.Stdout(), entries)
	}
	if len(entries) == 0 {
		ui.Printf("%s\n", ui.Dim("no entries"))
		return nil
	}
	t := ui.NewTable("SEQ", "TIME", "KIND", "SUMMARY")
	for _, e := range entries {
		t.Row(e.Sequence, e.Time.Local().Format("2006-01-02 15:04:05"), e.Kind, summarize(e))
	}
	return t.Flush()
}

// summarize renders the entry payload in one line.
func summarize(e *journal.Entry) string {
	switch e.Kind {
	case journal.KindVerify:
		var d journal.VerifyData
		if json.Unmarshal(e.Data, &d) != nil {
			break
		}
		if d.Error != "" {
			return fmt.Sprintf("%s on %d: %s", d.Document, d.ChainID, d.Error)
		}
		return fmt.Sprintf("%s on %d: %d signatures", d.Document, d.ChainID, d.Records)
	case journal.KindPublish:
		var d journal.PublishData
		if json.Unmarshal(e.Data, &d) != nil {
			break
		}
		return fmt.Sprintf("%s #%d on %d tx %s", d.Document, d.Index, d.ChainID, ui.ShortHex(d.TxHash))
	case journal.KindConfirm:
		var d journal.ConfirmData
		if json.Unmarshal(e.Data, &d) != nil {
			break
		}
		if d.Block > 0 {
			return fmt.Sprintf("%s %s in block %d", ui.ShortHex(d.TxHash), d.Outcome, d.Block)
		}
		return fmt.Sprintf("%s %s", ui.ShortHex(d.TxHash), d.Outcome)
	}
	return string(e.Data)
}
