package cli

import (
	"context"
	"fmt"
	"runtime"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/majorcontext/opensig/internal/config"
	"github.com/majorcontext/opensig/internal/doctor"
	"github.com/majorcontext/opensig/internal/network"
	"github.com/majorcontext/opensig/internal/secrets"
	"github.com/majorcontext/opensig/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, signing key and network connectivity",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ui.Printf("%s %s (%s/%s)\n\n", ui.Bold("opensig doctor"), version, runtime.GOOS, runtime.GOARCH)

	path := configPath
	if path == "" {
		path = config.Path()
	}
	reg := doctor.NewRegistry()
	reg.Register(&doctor.ConfigSection{Path: path, Config: state.cfg})
	reg.Register(&doctor.SignerSection{Resolve: func(ctx context.Context) (common.Address, string, error) {
		s, source, err := loadSigner(ctx)
		if err != nil {
			return common.Address{}, "", err
		}
		return s.Address(), source, nil
	}})
	reg.Register(&doctor.JournalSection{Path: state.cfg.JournalPath(), Disabled: state.cfg.Journal.Disabled})
	reg.Register(&doctor.AWSSection{References: secretRefs()})
	reg.Register(&doctor.NetworkSection{Networks: state.registry.All(), Check: checkNetwork, Timeout: state.cfg.CallTimeout})

	if failed := reg.Run(cmd.Context(), ui.Stdout()); failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

// checkNetwork resolves secret references in the endpoints before checking.
func checkNetwork(ctx context.Context, nc network.Config) (uint64, error) {
	endpoint, err := endpointFor(ctx, nc)
	if err != nil {
		return 0, err
	}
	nc.Endpoint = endpoint
	if nc.RPCEndpoint, err = secrets.Expand(ctx, nc.RPCEndpoint); err != nil {
		return 0, err
	}
	return doctor.RPCCheck(ctx, nc)
}
