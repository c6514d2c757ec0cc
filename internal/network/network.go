// Package network holds the static table of supported chains and the
// protocol parameters for each: contract address, pinned ABI, creation
// block, block time, discovery batch width and explorer links.
//
// A Registry is built once at startup (built-in entries plus an optional
// YAML overlay) and is read-only afterwards, so it can be shared freely.
package network

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChainID names an EVM network.
type ChainID uint64

func (id ChainID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseChainID accepts decimal or 0x-prefixed hex.
func ParseChainID(s string) (ChainID, error) {
	s = strings.TrimSpace(s)
	var (
		v   uint64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid chain id %q", s)
	}
	return ChainID(v), nil
}

// Kind selects the provider variant used for a network.
type Kind string

const (
	// KindWallet delegates reads and writes to an injected wallet.
	KindWallet Kind = "wallet"
	// KindRPC talks JSON-RPC to a fixed node endpoint.
	KindRPC Kind = "rpc"
	// KindAnkr reads through the Ankr multichain aggregator.
	KindAnkr Kind = "ankr"
)

// DefaultMaxBatchWidth is the number of identifiers queried per discovery batch.
const DefaultMaxBatchWidth = 50

// Config describes one supported chain.
type Config struct {
	ChainID  ChainID `yaml:"chain_id" json:"chain_id"`
	Name     string  `yaml:"name" json:"name"`
	Provider Kind    `yaml:"provider" json:"provider"`

	// Endpoint is the read endpoint: a node URL for rpc/wallet, the
	// aggregator URL for ankr.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	// EndpointSecret is a secret reference (e.g. env://ANKR_API_KEY) whose
	// value is appended to Endpoint as a path segment.
	EndpointSecret string `yaml:"endpoint_secret,omitempty" json:"-"`
	// RPCEndpoint is a plain JSON-RPC node used for writes and receipts
	// when Endpoint is an aggregator.
	RPCEndpoint string `yaml:"rpc_endpoint,omitempty" json:"rpc_endpoint,omitempty"`
	// Blockchain is the aggregator's name for this chain (ankr only).
	Blockchain string `yaml:"blockchain,omitempty" json:"blockchain,omitempty"`

	Contract      string `yaml:"contract" json:"contract"`
	ABIVersion    string `yaml:"abi_version,omitempty" json:"abi_version"`
	CreationBlock uint64 `yaml:"creation_block" json:"creation_block"`
	BlockTimeMs   int    `yaml:"block_time_ms" json:"block_time_ms"`
	MaxBatchWidth int    `yaml:"max_batch_width,omitempty" json:"max_batch_width"`
	// ExplorerURL is a transaction link template; "{tx}" is replaced with
	// the transaction hash.
	ExplorerURL           string `yaml:"explorer_url,omitempty" json:"explorer_url,omitempty"`
	ConfirmationLatencyMs int    `yaml:"confirmation_latency_ms,omitempty" json:"confirmation_latency_ms,omitempty"`
	// RateLimit caps aggregator requests per second (0 = unlimited).
	RateLimit float64 `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}

// BlockTime returns the expected interval between blocks.
func (c Config) BlockTime() time.Duration {
	return time.Duration(c.BlockTimeMs) * time.Millisecond
}

// ConfirmationLatency returns the extra wait applied after a receipt is seen.
func (c Config) ConfirmationLatency() time.Duration {
	return time.Duration(c.ConfirmationLatencyMs) * time.Millisecond
}

// ContractAddress returns the registry contract address.
func (c Config) ContractAddress() common.Address {
	return common.HexToAddress(c.Contract)
}

// ExplorerTxURL returns the explorer link for tx, or "" when none is configured.
func (c Config) ExplorerTxURL(tx string) string {
	if c.ExplorerURL == "" {
		return ""
	}
	if strings.Contains(c.ExplorerURL, "{tx}") {
		return strings.ReplaceAll(c.ExplorerURL, "{tx}", tx)
	}
	return c.ExplorerURL + tx
}

func (c *Config) applyDefaults() {
	if c.ABIVersion == "" {
		c.ABIVersion = DefaultABIVersion
	}
	if c.MaxBatchWidth == 0 {
		c.MaxBatchWidth = DefaultMaxBatchWidth
	}
}

// Validate checks that the entry is usable.
func (c Config) Validate() error {
	var errs []error
	if c.ChainID == 0 {
		errs = append(errs, errors.New("chain_id must be positive"))
	}
	if !common.IsHexAddress(c.Contract) {
		errs = append(errs, fmt.Errorf("contract %q is not a hex address", c.Contract))
	}
	switch c.Provider {
	case KindWallet, KindRPC:
	case KindAnkr:
		if c.Blockchain == "" {
			errs = append(errs, errors.New("ankr provider requires blockchain"))
		}
		if c.Endpoint == "" {
			errs = append(errs, errors.New("ankr provider requires endpoint"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	if _, ok := abiDefinitions[c.ABIVersion]; !ok {
		errs = append(errs, fmt.Errorf("unknown abi_version %q (known: %s)", c.ABIVersion, strings.Join(ABIVersions(), ", ")))
	}
	if c.MaxBatchWidth < 1 {
		errs = append(errs, fmt.Errorf("max_batch_width must be at least 1, got %d", c.MaxBatchWidth))
	}
	if c.BlockTimeMs <= 0 {
		errs = append(errs, fmt.Errorf("block_time_ms must be positive, got %d", c.BlockTimeMs))
	}
	if c.ConfirmationLatencyMs < 0 {
		errs = append(errs, errors.New("confirmation_latency_ms must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("network %s: %w", c.ChainID, errors.Join(errs...))
	}
	return nil
}

// UnsupportedNetworkError is returned when no entry exists for a chain.
type UnsupportedNetworkError struct {
	ChainID ChainID
}

func (e *UnsupportedNetworkError) Error() string {
	return fmt.Sprintf("blockchain %s is not supported", e.ChainID)
}
