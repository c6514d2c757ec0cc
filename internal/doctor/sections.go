package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"

	"github.com/majorcontext/opensig/internal/config"
	"github.com/majorcontext/opensig/internal/journal"
	"github.com/majorcontext/opensig/internal/network"
	"github.com/majorcontext/opensig/internal/secrets"
	"github.com/majorcontext/opensig/internal/ui"
)

// ConfigSection reports where settings come from.
type ConfigSection struct {
	Path   string
	Config *config.Config
}

func (s *ConfigSection) Name() string { return "Configuration" }

func (s *ConfigSection) Print(_ context.Context, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	state := "defaults (no file)"
	if _, err := os.Stat(s.Path); err == nil {
		state = "loaded"
	}
	fmt.Fprintf(tw, "File:\t%s (%s)\n", s.Path, state)
	fmt.Fprintf(tw, "Home:\t%s\n", config.Dir())
	fmt.Fprintf(tw, "Default chain:\t%s\n", s.Config.DefaultChain)
	fmt.Fprintf(tw, "Call timeout:\t%s\n", s.Config.CallTimeout)
	fmt.Fprintf(tw, "Confirm timeout:\t%s\n", s.Config.ConfirmTimeout)
	fmt.Fprintf(tw, "Networks file:\t%s\n", s.Config.NetworksPath())
	return tw.Flush()
}

// SignerFunc resolves the configured signer without using it.
type SignerFunc func(ctx context.Context) (addr common.Address, source string, err error)

// SignerSection reports which signing key is configured.
type SignerSection struct {
	Resolve SignerFunc
}

func (s *SignerSection) Name() string { return "Signer" }

func (s *SignerSection) Print(ctx context.Context, w io.Writer) error {
	addr, source, err := s.Resolve(ctx)
	if err != nil {
		fmt.Fprintf(w, "%s no signer available (verify still works)\n", ui.WarnTag())
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Address:\t%s %s\n", ui.OKTag(), addr.Hex())
	fmt.Fprintf(tw, "Source:\t%s\n", source)
	return tw.Flush()
}

// JournalSection checks the local journal's hash chain.
type JournalSection struct {
	Path     string
	Disabled bool
}

func (s *JournalSection) Name() string { return "Journal" }

func (s *JournalSection) Print(ctx context.Context, w io.Writer) error {
	if s.Disabled {
		fmt.Fprintf(w, "%s disabled\n", ui.Dim("—"))
		return nil
	}
	if _, err := os.Stat(s.Path); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(w, "%s not created yet (%s)\n", ui.Dim("—"), s.Path)
		return nil
	}
	store, err := journal.Open(ctx, s.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := store.Check(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Path:\t%s\n", s.Path)
	fmt.Fprintf(tw, "Entries:\t%d\n", res.Entries)
	if res.Valid {
		fmt.Fprintf(tw, "Integrity:\t%s hash chain intact\n", ui.OKTag())
	} else {
		fmt.Fprintf(tw, "Integrity:\t%s %s\n", ui.FailTag(), res.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("journal broken at entry %d", res.BrokenAt)
	}
	return nil
}

// AWSSection reports the AWS principal used for awssm:// references.
type AWSSection struct {
	// References lists every secret reference in the configuration.
	References []string
	// Client overrides the STS client built from the default AWS config.
	Client secrets.STSCallerIdentifier
}

func (s *AWSSection) Name() string { return "AWS" }

func (s *AWSSection) Print(ctx context.Context, w io.Writer) error {
	var refs []string
	for _, ref := range s.References {
		if strings.HasPrefix(ref, "awssm://") {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		fmt.Fprintf(w, "%s no awssm:// references configured\n", ui.Dim("—"))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, ref := range refs {
		fmt.Fprintf(tw, "Reference:\t%s\n", ref)
	}
	arn, err := secrets.Identity(ctx, s.Client)
	if err != nil {
		fmt.Fprintf(tw, "Principal:\t%s unknown\n", ui.FailTag())
		tw.Flush()
		return fmt.Errorf("%w\n  Run: aws sts get-caller-identity", err)
	}
	fmt.Fprintf(tw, "Principal:\t%s %s\n", ui.OKTag(), arn)
	return tw.Flush()
}

// CheckFunc reports the latest block of a network's read endpoint.
type CheckFunc func(ctx context.Context, cfg network.Config) (uint64, error)

// DefaultCheckConcurrency bounds parallel network checks.
const DefaultCheckConcurrency = 4

// NetworkSection checks every configured network.
type NetworkSection struct {
	Networks []network.Config
	Check    CheckFunc
	Timeout  time.Duration
}

func (s *NetworkSection) Name() string { return "Networks" }

type checkResult struct {
	block   uint64
	err     error
	elapsed time.Duration
}

func (s *NetworkSection) Print(ctx context.Context, w io.Writer) error {
	check := s.Check
	if check == nil {
		check = RPCCheck
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	results := make([]checkResult, len(s.Networks))
	var g errgroup.Group
	g.SetLimit(DefaultCheckConcurrency)
	for i, cfg := range s.Networks {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			block, err := check(pctx, cfg)
			results[i] = checkResult{block: block, err: err, elapsed: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	failed := 0
	for i, cfg := range s.Networks {
		r := results[i]
		if r.err != nil {
			failed++
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s %v\n", cfg.ChainID, cfg.Name, cfg.Provider, ui.FailTag(), r.err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s block %d (%s)\n", cfg.ChainID, cfg.Name, cfg.Provider, ui.OKTag(), r.block, r.elapsed.Round(time.Millisecond))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d networks unreachable", failed, len(s.Networks))
	}
	return nil
}

// ErrNoEndpoint is returned by RPCCheck for networks without a node URL.
var ErrNoEndpoint = errors.New("no JSON-RPC endpoint configured")

// RPCCheck dials the network's JSON-RPC node, checks the chain ID and
// returns the latest block number. Aggregator networks are checked on
// their rpc_endpoint.
func RPCCheck(ctx context.Context, cfg network.Config) (uint64, error) {
	endpoint := cfg.Endpoint
	if cfg.Provider == network.KindAnkr {
		endpoint = cfg.RPCEndpoint
	}
	if endpoint == "" {
		return 0, ErrNoEndpoint
	}
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	id, err := client.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	if id.Uint64() != uint64(cfg.ChainID) {
		return 0, fmt.Errorf("endpoint serves chain %s", id)
	}
	return client.BlockNumber(ctx)
}
