package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/majorcontext/opensig/internal/hashchain"
	"github.com/majorcontext/opensig/internal/log"
	"github.com/majorcontext/opensig/internal/network"
)

// ChainClient is the subset of *ethclient.Client used by RPCProvider.
type ChainClient interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Signer signs transactions locally.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// RPCProvider talks JSON-RPC to a fixed node. Without a Signer it is
// read-only.
type RPCProvider struct {
	cfg    network.Config
	codec  *eventCodec
	client ChainClient
	signer Signer

	// sendMu is held from the nonce lookup until the node accepts the
	// transaction, so concurrent publishes never share a nonce.
	sendMu sync.Mutex
}

func init() {
	Register(network.KindRPC, func(ctx context.Context, cfg network.Config, opts Options) (Provider, error) {
		endpoint := opts.endpoint(cfg)
		if endpoint == "" {
			return nil, fmt.Errorf("network %s has no endpoint configured", cfg.ChainID)
		}
		return DialRPC(ctx, cfg, endpoint, opts.Signer)
	})
}

// NewRPCProvider wraps an existing client. signer may be nil.
func NewRPCProvider(cfg network.Config, client ChainClient, signer Signer) (*RPCProvider, error) {
	codec, err := newEventCodec(cfg)
	if err != nil {
		return nil, err
	}
	return &RPCProvider{cfg: cfg, codec: codec, client: client, signer: signer}, nil
}

// DialRPC connects to endpoint. signer may be nil.
func DialRPC(ctx context.Context, cfg network.Config, endpoint string, signer Signer) (*RPCProvider, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, &ProviderError{Provider: string(network.KindRPC), Op: "dial", Err: err}
	}
	return NewRPCProvider(cfg, client, signer)
}

func (p *RPCProvider) Kind() string { return string(network.KindRPC) }

// Close releases the underlying connection when the client supports it.
func (p *RPCProvider) Close() {
	if c, ok := p.client.(interface{ Close() }); ok {
		c.Close()
	}
}

func (p *RPCProvider) QueryRecords(ctx context.Context, ids []hashchain.Identifier) ([]Event, error) {
	if err := checkWidth(len(ids), p.cfg.MaxBatchWidth); err != nil {
		return nil, err
	}
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(p.cfg.CreationBlock),
		Addresses: []common.Address{p.codec.contract},
		Topics:    p.codec.topics(ids),
	}
	logs, err := p.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "query", Err: err}
	}
	raw := make([]rawLog, len(logs))
	for i, l := range logs {
		raw[i] = fromTypesLog(l)
	}
	events, err := p.codec.decodeAll(raw)
	if err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "query", Err: err}
	}
	return events, nil
}

func (p *RPCProvider) PublishRecord(ctx context.Context, id hashchain.Identifier, data []byte) (*Submission, error) {
	if p.signer == nil {
		return nil, ErrReadOnly
	}
	calldata, err := p.codec.packRegister(id, data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s call: %w", network.RegisterMethod, err)
	}
	from := p.signer.Address()
	to := p.codec.contract

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	nonce, err := p.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "publish", Message: "fetching nonce", Err: err}
	}
	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "publish", Message: "fetching gas price", Err: err}
	}
	gas, err := p.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: calldata})
	if err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "publish", Message: "estimating gas", Err: err}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    new(big.Int),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     calldata,
	})
	signed, err := p.signer.SignTx(tx, new(big.Int).SetUint64(uint64(p.cfg.ChainID)))
	if err != nil {
		if isUserRejection(err) {
			return nil, fmt.Errorf("%s publish: %w", p.Kind(), ErrUserRejected)
		}
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	if err := p.client.SendTransaction(ctx, signed); err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "publish", Err: err}
	}
	log.Component("provider").Debug("transaction sent", "chain_id", p.cfg.ChainID, "tx", signed.Hash().Hex(), "nonce", nonce, "gas", gas)
	return &Submission{TxHash: signed.Hash(), Signer: from}, nil
}

func (p *RPCProvider) TransactionReceipt(ctx context.Context, tx common.Hash) (*Receipt, error) {
	r, err := p.client.TransactionReceipt(ctx, tx)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "receipt", Err: err}
	}
	out := &Receipt{TxHash: tx, Status: r.Status, GasUsed: r.GasUsed}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	return out, nil
}
