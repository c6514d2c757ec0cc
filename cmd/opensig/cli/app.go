package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/majorcontext/opensig/internal/config"
	"github.com/majorcontext/opensig/internal/journal"
	"github.com/majorcontext/opensig/internal/keystore"
	"github.com/majorcontext/opensig/internal/log"
	"github.com/majorcontext/opensig/internal/network"
	"github.com/majorcontext/opensig/internal/provider"
	"github.com/majorcontext/opensig/internal/secrets"
	"github.com/majorcontext/opensig/internal/signature"
	"github.com/majorcontext/opensig/internal/wallet"
)

// resolveChain returns the network for an explicit --chain value, falling
// back to the configured default.
func resolveChain(flag string) (network.Config, error) {
	chain := state.cfg.DefaultChain
	if flag != "" {
		id, err := network.ParseChainID(flag)
		if err != nil {
			return network.Config{}, err
		}
		chain = id
	}
	return state.registry.Lookup(chain)
}

// endpointFor returns the network's read endpoint. The endpoint itself may
// be a secret reference; an endpoint secret is appended as a trailing path
// segment.
func endpointFor(ctx context.Context, cfg network.Config) (string, error) {
	endpoint, err := secrets.Expand(ctx, cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("resolving endpoint for %s: %w", cfg.Name, err)
	}
	if cfg.EndpointSecret == "" {
		return endpoint, nil
	}
	key, err := secrets.Resolve(ctx, cfg.EndpointSecret)
	if err != nil {
		return "", fmt.Errorf("resolving endpoint secret for %s: %w", cfg.Name, err)
	}
	return strings.TrimRight(endpoint, "/") + "/" + url.PathEscape(key), nil
}

// secretRefs lists every secret reference the configuration uses.
func secretRefs() []string {
	var refs []string
	if ref := state.cfg.Signer.KeyRef; ref != "" {
		refs = append(refs, ref)
	}
	for _, nc := range state.registry.All() {
		for _, v := range []string{nc.Endpoint, nc.EndpointSecret, nc.RPCEndpoint} {
			if secrets.IsReference(v) {
				refs = append(refs, v)
			}
		}
	}
	return refs
}

// loadSigner returns the configured signing key and where it came from.
func loadSigner(ctx context.Context) (*wallet.KeySigner, string, error) {
	if ref := state.cfg.Signer.KeyRef; ref != "" {
		v, err := secrets.Resolve(ctx, ref)
		if err != nil {
			return nil, "", err
		}
		raw, err := keystore.DecodeKey(v)
		if err != nil {
			return nil, "", fmt.Errorf("key from %s: %w", ref, err)
		}
		s, err := wallet.NewKeySigner(raw)
		return s, "secret " + ref, err
	}

	raw, backend, err := keystore.New(config.KeysDir()).Get(state.cfg.Signer.Key)
	if errors.Is(err, keystore.ErrNotFound) {
		return nil, "", fmt.Errorf("%w\n\n  Import one with: opensig key import", err)
	}
	if err != nil {
		return nil, "", err
	}
	s, err := wallet.NewKeySigner(raw)
	return s, backend, err
}

// serviceOptions configures newService.
type serviceOptions struct {
	Signer  *wallet.KeySigner
	Confirm wallet.ConfirmFunc
}

// closers collects wallets dialed while opening providers.
var (
	closersMu sync.Mutex
	closers   []func()
)

func newService(opts serviceOptions) *signature.Service {
	cfg := state.cfg
	open := func(ctx context.Context, nc network.Config) (provider.Provider, error) {
		endpoint, err := endpointFor(ctx, nc)
		if err != nil {
			return nil, err
		}
		if nc.RPCEndpoint, err = secrets.Expand(ctx, nc.RPCEndpoint); err != nil {
			return nil, fmt.Errorf("resolving rpc_endpoint for %s: %w", nc.Name, err)
		}
		popts := provider.Options{Endpoint: endpoint}
		if opts.Signer != nil {
			popts.Signer = opts.Signer
		}
		if nc.Provider == network.KindWallet {
			if endpoint == "" {
				return nil, fmt.Errorf("network %s (%s) has no endpoint; set one in %s", nc.ChainID, nc.Name, cfg.NetworksPath())
			}
			w, err := wallet.Dial(ctx, endpoint, opts.Signer, uint64(nc.ChainID))
			if err != nil {
				return nil, err
			}
			w.Confirm = opts.Confirm
			closersMu.Lock()
			closers = append(closers, w.Close)
			closersMu.Unlock()
			popts.Wallet = w
		}
		log.Debug("opening provider", "chain_id", nc.ChainID, "kind", nc.Provider)
		return provider.Open(ctx, nc, popts)
	}
	return signature.NewService(state.registry, open, signature.Settings{
		CallTimeout:    cfg.CallTimeout,
		ConfirmTimeout: cfg.ConfirmTimeout,
		PollInterval:   cfg.PollInterval,
		Cipher:         signature.DocumentCipher,
	})
}

func closeService(svc *signature.Service) {
	svc.Close()
	closersMu.Lock()
	defer closersMu.Unlock()
	for _, c := range closers {
		c()
	}
	closers = nil
}

var (
	journalOnce  sync.Once
	journalStore *journal.Store
)

// openJournal returns the journal, or nil when disabled or unavailable.
func openJournal(ctx context.Context) *journal.Store {
	journalOnce.Do(func() {
		if state.cfg.Journal.Disabled {
			return
		}
		s, err := journal.Open(ctx, state.cfg.JournalPath())
		if err != nil {
			log.Warn("journal unavailable", "path", state.cfg.JournalPath(), "error", err)
			return
		}
		journalStore = s
	})
	return journalStore
}

// record appends to the journal. Failures are logged, never returned.
func record(ctx context.Context, kind journal.Kind, data any) {
	s := openJournal(ctx)
	if s == nil {
		return
	}
	if _, err := s.Append(ctx, kind, data); err != nil {
		log.Warn("journal append failed", "kind", kind, "error", err)
	}
}

func closeJournal() {
	if journalStore != nil {
		journalStore.Close()
	}
	journalStore = nil
	journalOnce = sync.Once{}
}
