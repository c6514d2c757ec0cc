package provider

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/majorcontext/opensig/internal/network"
)

// Options carries the injected capabilities a variant may need.
type Options struct {
	// Endpoint overrides cfg.Endpoint, typically with an API key applied.
	Endpoint string
	// Wallet is required by the wallet variant.
	Wallet Wallet
	// Signer enables writes on the rpc variant and on the ankr variant's
	// write-side node.
	Signer Signer
	// Writer handles writes and receipts for the ankr variant. When nil and
	// the network has an rpc_endpoint, an rpc provider is dialed for it.
	Writer Provider
	// HTTPClient is used by the ankr variant. Defaults to a client with a
	// 30s timeout.
	HTTPClient *http.Client
}

func (o Options) endpoint(cfg network.Config) string {
	if o.Endpoint != "" {
		return o.Endpoint
	}
	return cfg.Endpoint
}

// Factory builds a provider for one network.
type Factory func(ctx context.Context, cfg network.Config, opts Options) (Provider, error)

var (
	mu        sync.RWMutex
	factories = make(map[network.Kind]Factory)
)

// Register adds a variant. Registering the same kind twice replaces it.
func Register(kind network.Kind, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Kinds returns the registered variant names, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for k := range factories {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

// Open builds the provider variant named by cfg.Provider.
func Open(ctx context.Context, cfg network.Config, opts Options) (Provider, error) {
	mu.RLock()
	f, ok := factories[cfg.Provider]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q for network %s (known: %s)", ErrUnknownKind, cfg.Provider, cfg.ChainID, strings.Join(Kinds(), ", "))
	}
	return f(ctx, cfg, opts)
}
