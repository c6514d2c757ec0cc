// Package cli implements the opensig command-line interface using Cobra.
// It hashes documents, discovers their signatures on supported chains and
// publishes new ones with a locally held key.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/majorcontext/opensig/internal/config"
	"github.com/majorcontext/opensig/internal/id"
	"github.com/majorcontext/opensig/internal/log"
	"github.com/majorcontext/opensig/internal/network"
	"github.com/majorcontext/opensig/internal/ui"
)

var (
	verbose      bool
	jsonOut      bool
	configPath   string
	networksPath string
)

// state is loaded once per invocation by PersistentPreRunE.
var state struct {
	cfg      *config.Config
	registry *network.Registry
}

var rootCmd = &cobra.Command{
	Use:   "opensig",
	Short: "Sign and verify documents on public blockchains",
	Long: `opensig proves that a document existed and was signed, without ever
revealing the document. Each signature is an event on a registry contract,
keyed by an identifier derived from the document's SHA-256 hash.

  opensig verify contract.pdf
  opensig sign contract.pdf --chain 137 --message "approved"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		state.cfg = cfg

		if err := log.Init(log.Options{
			Verbose:       verbose,
			JSONFormat:    jsonOut,
			DebugDir:      config.DebugDir(),
			RetentionDays: cfg.Debug.RetentionDays,
		}); err != nil {
			// Non-fatal: the default logger still writes to stderr.
			ui.Warnf("failed to initialize debug logging: %v", err)
		}
		log.SetSessionID(id.Generate(id.Run))

		path := networksPath
		if path == "" {
			path = cfg.NetworksPath()
		}
		reg, err := network.Load(path)
		if err != nil {
			return err
		}
		state.registry = reg
		if !reg.Supported(cfg.DefaultChain) {
			ui.Warnf("default chain %s is not a configured network; pass --chain or add it to %s", cfg.DefaultChain, path)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeJournal()
		log.Close()
	},
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		ui.Errorf("%v", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.opensig/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&networksPath, "networks", "", "network overlay file (default ~/.opensig/networks.yaml)")
}
