package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/majorcontext/opensig/internal/log"
)

// Caller is the JSON-RPC surface KeyWallet forwards to. *rpc.Client
// satisfies it.
type Caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// ErrReadOnly is returned for transactions on a wallet without a signer.
var ErrReadOnly = errors.New("wallet has no signing key")

// rejectedCode is the EIP-1193 "user rejected request" code.
const rejectedCode = 4001

// RejectedError is returned when the confirmation hook declines a transaction.
type RejectedError struct{}

func (RejectedError) Error() string  { return "user rejected the request" }
func (RejectedError) ErrorCode() int { return rejectedCode }

// TxSummary describes a transaction awaiting confirmation.
type TxSummary struct {
	ChainID  *big.Int
	From     common.Address
	To       common.Address
	Gas      uint64
	GasPrice *big.Int
	DataLen  int
}

// Fee returns the maximum fee in wei.
func (s TxSummary) Fee() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(s.Gas), s.GasPrice)
}

// ConfirmFunc approves or declines a transaction before it is signed.
type ConfirmFunc func(ctx context.Context, tx TxSummary) (bool, error)

// KeyWallet answers account and transaction requests with a local key and
// forwards everything else to a node.
type KeyWallet struct {
	caller  Caller
	signer  *KeySigner
	chainID *big.Int
	closer  func()

	// Confirm is consulted before each transaction is signed. Nil approves.
	Confirm ConfirmFunc

	mu sync.Mutex // serializes nonce assignment
}

// New returns a wallet over caller. A nil signer gives a read-only wallet
// that exposes no accounts.
func New(caller Caller, signer *KeySigner, chainID uint64) *KeyWallet {
	return &KeyWallet{caller: caller, signer: signer, chainID: new(big.Int).SetUint64(chainID)}
}

// Dial connects to a JSON-RPC node.
func Dial(ctx context.Context, endpoint string, signer *KeySigner, chainID uint64) (*KeyWallet, error) {
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}
	w := New(client, signer, chainID)
	w.closer = client.Close
	return w, nil
}

// Close releases the node connection when the wallet dialed it.
func (w *KeyWallet) Close() {
	if w.closer != nil {
		w.closer()
	}
}

// Address returns the account the wallet exposes, zero when read-only.
func (w *KeyWallet) Address() common.Address {
	if w.signer == nil {
		return common.Address{}
	}
	return w.signer.Address()
}

// Request implements provider.Wallet.
func (w *KeyWallet) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	switch method {
	case "eth_requestAccounts", "eth_accounts":
		if w.signer == nil {
			return json.Marshal([]common.Address{})
		}
		return json.Marshal([]common.Address{w.signer.Address()})
	case "eth_chainId":
		return json.Marshal((*hexutil.Big)(w.chainID))
	case "eth_sendTransaction":
		if len(params) != 1 {
			return nil, fmt.Errorf("eth_sendTransaction takes one argument, got %d", len(params))
		}
		hash, err := w.sendTransaction(ctx, params[0])
		if err != nil {
			return nil, err
		}
		return json.Marshal(hash)
	}
	var raw json.RawMessage
	if err := w.caller.CallContext(ctx, &raw, method, params...); err != nil {
		return nil, err
	}
	return raw, nil
}

// txArgs is the eth_sendTransaction argument object.
type txArgs struct {
	From     *common.Address `json:"from"`
	To       *common.Address `json:"to"`
	Value    *hexutil.Big    `json:"value"`
	Data     hexutil.Bytes   `json:"data"`
	Gas      *hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
}

func (w *KeyWallet) sendTransaction(ctx context.Context, param any) (common.Hash, error) {
	if w.signer == nil {
		return common.Hash{}, ErrReadOnly
	}
	encoded, err := json.Marshal(param)
	if err != nil {
		return common.Hash{}, err
	}
	var args txArgs
	if err := json.Unmarshal(encoded, &args); err != nil {
		return common.Hash{}, fmt.Errorf("decoding transaction: %w", err)
	}
	from := w.signer.Address()
	if args.From != nil && *args.From != from {
		return common.Hash{}, fmt.Errorf("wallet cannot sign for %s", args.From.Hex())
	}
	if args.To == nil {
		return common.Hash{}, errors.New("contract creation is not supported")
	}
	value := new(big.Int)
	if args.Value != nil {
		value = args.Value.ToInt()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	gasPrice := new(big.Int)
	if args.GasPrice != nil {
		gasPrice = args.GasPrice.ToInt()
	} else {
		var gp hexutil.Big
		if err := w.caller.CallContext(ctx, &gp, "eth_gasPrice"); err != nil {
			return common.Hash{}, fmt.Errorf("suggesting gas price: %w", err)
		}
		gasPrice = gp.ToInt()
	}

	var gas uint64
	if args.Gas != nil {
		gas = uint64(*args.Gas)
	} else {
		call := map[string]any{
			"from":  from,
			"to":    args.To,
			"value": (*hexutil.Big)(value),
			"data":  args.Data,
		}
		var est hexutil.Uint64
		if err := w.caller.CallContext(ctx, &est, "eth_estimateGas", call); err != nil {
			return common.Hash{}, fmt.Errorf("estimating gas: %w", err)
		}
		gas = uint64(est)
	}

	if w.Confirm != nil {
		ok, err := w.Confirm(ctx, TxSummary{
			ChainID:  w.chainID,
			From:     from,
			To:       *args.To,
			Gas:      gas,
			GasPrice: gasPrice,
			DataLen:  len(args.Data),
		})
		if err != nil {
			return common.Hash{}, err
		}
		if !ok {
			return common.Hash{}, RejectedError{}
		}
	}

	var nonce hexutil.Uint64
	if err := w.caller.CallContext(ctx, &nonce, "eth_getTransactionCount", from, "pending"); err != nil {
		return common.Hash{}, fmt.Errorf("fetching nonce: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    uint64(nonce),
		To:       args.To,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     args.Data,
	})
	signed, err := w.signer.SignTx(tx, w.chainID)
	if err != nil {
		return common.Hash{}, err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return common.Hash{}, fmt.Errorf("encoding transaction: %w", err)
	}

	var hash common.Hash
	if err := w.caller.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return common.Hash{}, err
	}
	log.Debug("transaction sent", "tx", hash.Hex(), "nonce", uint64(nonce), "gas", gas)
	return hash, nil
}
