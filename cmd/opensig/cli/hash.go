package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/majorcontext/opensig/internal/hashchain"
	"github.com/majorcontext/opensig/internal/ui"
)

var hashCount int

var hashCmd = &cobra.Command{
	Use:   "hash <file>",
	Short: "Print a document's digest and signature identifiers",
	Long: `Print the SHA-256 digest of a document and the first identifiers of its
hash chain. Identifier n is the key under which the n-th signature of the
document is registered on chain.`,
	Args: cobra.ExactArgs(1),
	RunE: runHash,
}

func init() {
	rootCmd.AddCommand(hashCmd)
	hashCmd.Flags().IntVarP(&hashCount, "count", "n", 3, "number of identifiers to print")
}

type hashOutput struct {
	File        string                 `json:"file"`
	Digest      hashchain.Digest       `json:"digest"`
	Identifiers []hashchain.Identifier `json:"identifiers"`
}

func runHash(cmd *cobra.Command, args []string) error {
	if hashCount < 0 {
		return fmt.Errorf("--count must not be negative")
	}
	d, err := hashchain.HashFile(args[0])
	if err != nil {
		return err
	}
	out := hashOutput{File: args[0], Digest: d, Identifiers: hashchain.Derive(d).Next(hashCount)}
	if out.Identifiers == nil {
		out.Identifiers = []hashchain.Identifier{}
	}

	if jsonOut {
		return writeJSON(ui.Stdout(), out)
	}
	ui.Printf("%s  %s\n", d, args[0])
	for i, id := range out.Identifiers {
		ui.Printf("  %d  %s\n", i, id)
	}
	return nil
}
