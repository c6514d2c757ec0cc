package cli

import (
	"github.com/spf13/cobra"

	"github.com/majorcontext/opensig/internal/ui"
)

var networksCmd = &cobra.Command{
	Use:     "networks",
	Aliases: []string{"chains"},
	Short:   "List supported networks",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		nets := state.registry.All()
		if jsonOut {
			return writeJSON(ui.Stdout(), nets)
		}
		t := ui.NewTable("CHAIN", "NAME", "PROVIDER", "CONTRACT", "ABI", "BLOCK TIME")
		for _, n := range nets {
			name := n.Name
			if n.ChainID == state.cfg.DefaultChain {
				name += " " + ui.Dim("(default)")
			}
			t.Row(n.ChainID, name, n.Provider, ui.ShortHex(n.Contract), n.ABIVersion, n.BlockTime())
		}
		return t.Flush()
	},
}

func init() {
	rootCmd.AddCommand(networksCmd)
}
