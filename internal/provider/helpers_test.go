package provider

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/majorcontext/opensig/internal/hashchain"
	"github.com/majorcontext/opensig/internal/network"
)

var (
	testContract = common.HexToAddress("0x4037E81D79aD0E917De012dE009ff41c740BB453")
	testSigner   = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func testConfig(kind network.Kind, abiVersion string) network.Config {
	return network.Config{
		ChainID:       137,
		Name:          "Test",
		Provider:      kind,
		Endpoint:      "http://unused",
		Blockchain:    "polygon",
		Contract:      testContract.Hex(),
		ABIVersion:    abiVersion,
		CreationBlock: 100,
		BlockTimeMs:   2000,
		MaxBatchWidth: 3,
	}
}

func testIDs(n int) []hashchain.Identifier {
	return hashchain.Derive(hashchain.HashBytes([]byte("provider test"))).Next(n)
}

// encodeLog builds a Signature log the way the contract emits it.
func encodeLog(t *testing.T, c *eventCodec, id hashchain.Identifier, signer common.Address, ts int64, data []byte) rawLog {
	t.Helper()
	var args []any
	if c.timeArg >= 0 {
		args = append(args, big.NewInt(ts))
	}
	args = append(args, data)
	packed, err := c.event.Inputs.NonIndexed().Pack(args...)
	require.NoError(t, err)

	topics := make([]common.Hash, 3)
	topics[0] = c.event.ID
	topics[c.signerTopic] = common.BytesToHash(signer.Bytes())
	topics[c.idTopic] = common.Hash(id)
	return rawLog{
		Address:     c.contract,
		Topics:      topics,
		Data:        packed,
		BlockNumber: 4242,
		TxHash:      common.HexToHash("0xabc1"),
		LogIndex:    2,
	}
}

// logJSON renders l the way a node does: hex quantities.
func logJSON(l rawLog) map[string]any {
	topics := make([]string, len(l.Topics))
	for i, tp := range l.Topics {
		topics[i] = tp.Hex()
	}
	return map[string]any{
		"address":         l.Address.Hex(),
		"topics":          topics,
		"data":            hexutil.Encode(l.Data),
		"blockNumber":     hexutil.EncodeUint64(uint64(l.BlockNumber)),
		"transactionHash": l.TxHash.Hex(),
		"logIndex":        hexutil.EncodeUint64(uint64(l.LogIndex)),
		"removed":         l.Removed,
	}
}

type walletError struct {
	code int
	msg  string
}

func (e *walletError) Error() string  { return e.msg }
func (e *walletError) ErrorCode() int { return e.code }

type walletCall struct {
	method string
	params []any
}

// fakeWallet answers EIP-1193 requests from a handler table.
type fakeWallet struct {
	mu       sync.Mutex
	calls    []walletCall
	handlers map[string]func(params []any) (any, error)
}

func (w *fakeWallet) Request(_ context.Context, method string, params ...any) (json.RawMessage, error) {
	w.mu.Lock()
	w.calls = append(w.calls, walletCall{method: method, params: params})
	h := w.handlers[method]
	w.mu.Unlock()
	if h == nil {
		return nil, &walletError{code: -32601, msg: "method not found: " + method}
	}
	v, err := h(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (w *fakeWallet) methods() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.calls))
	for i, c := range w.calls {
		out[i] = c.method
	}
	return out
}
