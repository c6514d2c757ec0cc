package provider

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majorcontext/opensig/internal/network"
)

type fakeChainClient struct {
	logs     []types.Log
	queries  []ethereum.FilterQuery
	receipt  *types.Receipt
	sent     []*types.Transaction
	nonce    uint64
	filterFn func(ethereum.FilterQuery) error
}

func (f *fakeChainClient) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.queries = append(f.queries, q)
	if f.filterFn != nil {
		if err := f.filterFn(q); err != nil {
			return nil, err
		}
	}
	return f.logs, nil
}

func (f *fakeChainClient) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func (f *fakeChainClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeChainClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(30_000_000_000), nil
}

func (f *fakeChainClient) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 48_000, nil
}

func (f *fakeChainClient) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

type keySigner struct {
	key *ecdsa.PrivateKey
}

func (s keySigner) Address() common.Address { return crypto.PubkeyToAddress(s.key.PublicKey) }

func (s keySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

func TestRPC_QueryRecords(t *testing.T) {
	cfg := testConfig(network.KindRPC, network.ABIVersionV1)
	codec, err := newEventCodec(cfg)
	require.NoError(t, err)
	ids := testIDs(3)
	l := encodeLog(t, codec, ids[2], testSigner, 1700000000, []byte{0x00, 0x01, 0x01})

	client := &fakeChainClient{logs: []types.Log{{
		Address:     l.Address,
		Topics:      l.Topics,
		Data:        l.Data,
		BlockNumber: 99,
		TxHash:      l.TxHash,
		Index:       7,
	}}}
	p, err := NewRPCProvider(cfg, client, nil)
	require.NoError(t, err)

	events, err := p.QueryRecords(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ids[2], events[0].Identifier)
	assert.Equal(t, uint64(99), events[0].BlockNumber)
	assert.Equal(t, uint(7), events[0].LogIndex)

	require.Len(t, client.queries, 1)
	q := client.queries[0]
	assert.Equal(t, uint64(100), q.FromBlock.Uint64())
	assert.Equal(t, []common.Address{testContract}, q.Addresses)
	assert.Len(t, q.Topics[2], 3)
}

func TestRPC_QueryError(t *testing.T) {
	client := &fakeChainClient{filterFn: func(ethereum.FilterQuery) error {
		return errors.New("connection refused")
	}}
	p, err := NewRPCProvider(testConfig(network.KindRPC, network.ABIVersionV1), client, nil)
	require.NoError(t, err)

	_, err = p.QueryRecords(context.Background(), testIDs(1))
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "rpc", perr.Provider)
	assert.ErrorContains(t, err, "connection refused")
}

func TestRPC_PublishRequiresSigner(t *testing.T) {
	p, err := NewRPCProvider(testConfig(network.KindRPC, network.ABIVersionV1), &fakeChainClient{}, nil)
	require.NoError(t, err)

	_, err = p.PublishRecord(context.Background(), testIDs(1)[0], nil)
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestRPC_PublishRecord(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := keySigner{key: key}
	cfg := testConfig(network.KindRPC, network.ABIVersionV1)
	client := &fakeChainClient{nonce: 5}

	p, err := NewRPCProvider(cfg, client, signer)
	require.NoError(t, err)

	id := testIDs(1)[0]
	sub, err := p.PublishRecord(context.Background(), id, []byte{0x00, 0x01})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	tx := client.sent[0]
	assert.Equal(t, tx.Hash(), sub.TxHash)
	assert.Equal(t, signer.Address(), sub.Signer)
	assert.Equal(t, uint64(5), tx.Nonce())
	assert.Equal(t, uint64(48_000), tx.Gas())
	assert.Equal(t, testContract, *tx.To())
	assert.Zero(t, tx.Value().Sign())

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(137)), tx)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from)

	want, err := p.codec.packRegister(id, []byte{0x00, 0x01})
	require.NoError(t, err)
	assert.Equal(t, want, tx.Data())
}

func TestRPC_TransactionReceipt(t *testing.T) {
	client := &fakeChainClient{}
	p, err := NewRPCProvider(testConfig(network.KindRPC, network.ABIVersionV1), client, nil)
	require.NoError(t, err)
	tx := common.HexToHash("0x42")

	r, err := p.TransactionReceipt(context.Background(), tx)
	require.NoError(t, err)
	assert.Nil(t, r)

	client.receipt = &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(12)}
	r, err = p.TransactionReceipt(context.Background(), tx)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.False(t, r.Succeeded())
	assert.Equal(t, uint64(12), r.BlockNumber)
	assert.Equal(t, tx, r.TxHash)
}

// pendingNonceClient hands out the number of accepted transactions as the
// pending nonce, like a node with an empty mempool for other senders.
type pendingNonceClient struct {
	fakeChainClient

	mu       sync.Mutex
	inflight int
	peak     int
}

func (c *pendingNonceClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.sent)), nil
}

func (c *pendingNonceClient) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	c.inflight++
	if c.inflight > c.peak {
		c.peak = c.inflight
	}
	c.mu.Unlock()

	// Widen the window between nonce lookup and send.
	time.Sleep(20 * time.Millisecond)

	c.mu.Lock()
	c.inflight--
	c.mu.Unlock()
	return 48_000, nil
}

func (c *pendingNonceClient) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, tx)
	return nil
}

func TestRPC_PublishRecordConcurrentNonces(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	client := &pendingNonceClient{}
	p, err := NewRPCProvider(testConfig(network.KindRPC, network.ABIVersionV1), client, keySigner{key: key})
	require.NoError(t, err)

	ids := testIDs(4)
	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = p.PublishRecord(context.Background(), id, nil)
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	require.Len(t, client.sent, len(ids))
	seen := make(map[uint64]bool)
	for _, tx := range client.sent {
		if seen[tx.Nonce()] {
			t.Fatalf("nonce %d sent twice", tx.Nonce())
		}
		seen[tx.Nonce()] = true
	}
	assert.Equal(t, 1, client.peak, "nonce lookup to send must not overlap")
}
