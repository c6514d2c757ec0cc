package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/majorcontext/opensig/internal/hashchain"
	"github.com/majorcontext/opensig/internal/journal"
	"github.com/majorcontext/opensig/internal/network"
	"github.com/majorcontext/opensig/internal/signature"
	"github.com/majorcontext/opensig/internal/ui"
)

var (
	verifyChain string
	verifyAll   bool
	verifyURL   string
)

// verifyConcurrency bounds parallel discovery across networks.
const verifyConcurrency = 4

var verifyCmd = &cobra.Command{
	Use:   "verify <file>... | --url URL",
	Short: "List the signatures registered for a document",
	Long: `Hash each document locally and discover its signatures on chain. Only
the derived identifiers are sent to the network; the document never leaves
this machine.

With --all every configured network is searched concurrently.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifyChain, "chain", "", "chain ID to search (default from config)")
	verifyCmd.Flags().BoolVar(&verifyAll, "all", false, "search every configured network")
	verifyCmd.Flags().StringVar(&verifyURL, "url", "", "fetch the document from a URL instead of a file")
}

type document struct {
	Name   string           `json:"document"`
	Digest hashchain.Digest `json:"digest"`
}

type verifyResult struct {
	document
	ChainID network.ChainID    `json:"chain_id"`
	Network string             `json:"network"`
	Records []signature.Record `json:"records"`
	Error   string             `json:"error,omitempty"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	docs, err := loadDocuments(ctx, args, verifyURL)
	if err != nil {
		return err
	}

	var nets []network.Config
	if verifyAll {
		nets = state.registry.All()
	} else {
		nc, err := resolveChain(verifyChain)
		if err != nil {
			return err
		}
		nets = []network.Config{nc}
	}

	svc := newService(serviceOptions{})
	defer closeService(svc)

	results := verifyDocuments(ctx, svc, docs, nets)

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
		record(ctx, journal.KindVerify, journal.VerifyData{
			Document: r.Name,
			Digest:   r.Digest.String(),
			ChainID:  uint64(r.ChainID),
			Records:  len(r.Records),
			Highest:  highest(r.Records),
			Error:    r.Error,
		})
	}

	if jsonOut {
		if err := writeJSON(ui.Stdout(), results); err != nil {
			return err
		}
	} else if err := printVerify(results); err != nil {
		return err
	}

	if failed == len(results) {
		return errors.New("verification failed on every network")
	}
	return nil
}

// verifyDocuments runs discovery for every document on every network.
// Per-network failures are reported in the result, not returned.
func verifyDocuments(ctx context.Context, svc *signature.Service, docs []document, nets []network.Config) []verifyResult {
	results := make([]verifyResult, 0, len(docs)*len(nets))
	for _, d := range docs {
		for _, nc := range nets {
			results = append(results, verifyResult{document: d, ChainID: nc.ChainID, Network: nc.Name})
		}
	}

	var g errgroup.Group
	g.SetLimit(verifyConcurrency)
	for i := range results {
		g.Go(func() error {
			r := &results[i]
			_, records, err := svc.Verify(ctx, r.ChainID, r.Digest)
			if err != nil {
				r.Error = err.Error()
				return nil
			}
			r.Records = records
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func highest(rs []signature.Record) int {
	h := -1
	for _, r := range rs {
		if r.Index > h {
			h = r.Index
		}
	}
	return h
}

func printVerify(results []verifyResult) error {
	last := ""
	for _, r := range results {
		if r.Name != last {
			if last != "" {
				ui.Printf("\n")
			}
			ui.Section(r.Name)
			ui.Printf("Digest: %s\n", r.Digest)
			last = r.Name
		}
		ui.Printf("\n%s (%s)\n", ui.Bold(r.Network), r.ChainID)
		if r.Error != "" {
			ui.Printf("  %s %s\n", ui.FailTag(), r.Error)
			continue
		}
		if err := printRecords(r.Records); err != nil {
			return err
		}
	}
	return nil
}

func loadDocuments(ctx context.Context, files []string, rawURL string) ([]document, error) {
	if rawURL != "" {
		if len(files) > 0 {
			return nil, errors.New("give either files or --url, not both")
		}
		d, err := hashURL(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return []document{{Name: rawURL, Digest: d}}, nil
	}
	if len(files) == 0 {
		return nil, errors.New("no document given")
	}
	docs := make([]document, 0, len(files))
	for _, f := range files {
		d, err := hashchain.HashFile(f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, document{Name: f, Digest: d})
	}
	return docs, nil
}

// hashURL downloads a document and hashes it as it streams.
func hashURL(ctx context.Context, rawURL string) (hashchain.Digest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return hashchain.Digest{}, fmt.Errorf("invalid url: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return hashchain.Digest{}, fmt.Errorf("fetching document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return hashchain.Digest{}, fmt.Errorf("fetching document: HTTP %d", resp.StatusCode)
	}
	return hashchain.HashReader(resp.Body)
}
