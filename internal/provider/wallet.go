package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/majorcontext/opensig/internal/hashchain"
	"github.com/majorcontext/opensig/internal/network"
)

// Wallet is an EIP-1193 request interface. Errors carrying code 4001 (via
// an ErrorCode() int method) mean the owner declined the request.
type Wallet interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// WalletProvider sends every call through an injected wallet.
type WalletProvider struct {
	cfg    network.Config
	codec  *eventCodec
	wallet Wallet
}

func init() {
	Register(network.KindWallet, func(_ context.Context, cfg network.Config, opts Options) (Provider, error) {
		if opts.Wallet == nil {
			return nil, fmt.Errorf("network %s uses a wallet provider but no wallet is available", cfg.ChainID)
		}
		return NewWalletProvider(cfg, opts.Wallet)
	})
}

// NewWalletProvider returns a provider backed by w.
func NewWalletProvider(cfg network.Config, w Wallet) (*WalletProvider, error) {
	codec, err := newEventCodec(cfg)
	if err != nil {
		return nil, err
	}
	return &WalletProvider{cfg: cfg, codec: codec, wallet: w}, nil
}

func (p *WalletProvider) Kind() string { return string(network.KindWallet) }

func (p *WalletProvider) QueryRecords(ctx context.Context, ids []hashchain.Identifier) ([]Event, error) {
	if err := checkWidth(len(ids), p.cfg.MaxBatchWidth); err != nil {
		return nil, err
	}
	filter := map[string]any{
		"address":   p.codec.contract.Hex(),
		"fromBlock": hexutil.EncodeUint64(p.cfg.CreationBlock),
		"toBlock":   "latest",
		"topics":    p.codec.topicsJSON(ids),
	}
	raw, err := p.wallet.Request(ctx, "eth_getLogs", filter)
	if err != nil {
		return nil, p.fail("query", err)
	}
	var logs []rawLog
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "query", Message: "malformed eth_getLogs result", Err: err}
	}
	events, err := p.codec.decodeAll(logs)
	if err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "query", Err: err}
	}
	return events, nil
}

func (p *WalletProvider) PublishRecord(ctx context.Context, id hashchain.Identifier, data []byte) (*Submission, error) {
	raw, err := p.wallet.Request(ctx, "eth_requestAccounts")
	if err != nil {
		return nil, p.fail("publish", err)
	}
	var accounts []common.Address
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "publish", Message: "malformed account list", Err: err}
	}
	if len(accounts) == 0 {
		return nil, &ProviderError{Provider: p.Kind(), Op: "publish", Message: "wallet exposes no accounts"}
	}
	from := accounts[0]

	calldata, err := p.codec.packRegister(id, data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s call: %w", network.RegisterMethod, err)
	}
	tx := map[string]any{
		"from":  from.Hex(),
		"to":    p.codec.contract.Hex(),
		"value": "0x0",
		"data":  hexutil.Encode(calldata),
	}
	raw, err = p.wallet.Request(ctx, "eth_sendTransaction", tx)
	if err != nil {
		return nil, p.fail("publish", err)
	}
	var hash common.Hash
	if err := json.Unmarshal(raw, &hash); err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "publish", Message: "malformed transaction hash", Err: err}
	}
	return &Submission{TxHash: hash, Signer: from}, nil
}

func (p *WalletProvider) TransactionReceipt(ctx context.Context, tx common.Hash) (*Receipt, error) {
	raw, err := p.wallet.Request(ctx, "eth_getTransactionReceipt", tx.Hex())
	if err != nil {
		return nil, p.fail("receipt", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var r rawReceipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "receipt", Message: "malformed receipt", Err: err}
	}
	return r.receipt(), nil
}

func (p *WalletProvider) fail(op string, err error) error {
	if isUserRejection(err) {
		return fmt.Errorf("%s %s: %w", p.Kind(), op, ErrUserRejected)
	}
	return &ProviderError{Provider: p.Kind(), Op: op, Err: err}
}
