package signature

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/majorcontext/opensig/internal/hashchain"
	"github.com/majorcontext/opensig/internal/network"
	"github.com/majorcontext/opensig/internal/provider"
)

var (
	alice = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xB0B0000000000000000000000000000000000002")
)

func testNetwork(width int) network.Config {
	return network.Config{
		ChainID:               137,
		Name:                  "Test",
		Provider:              network.KindRPC,
		Contract:              "0x4037E81D79aD0E917De012dE009ff41c740BB453",
		ABIVersion:            network.ABIVersionV1,
		BlockTimeMs:           2000,
		ConfirmationLatencyMs: 5000,
		MaxBatchWidth:         width,
		ExplorerURL:           "https://scan.example/tx/{tx}",
	}
}

// ledger is an in-memory registry contract.
type ledger struct {
	mu sync.Mutex

	events   []provider.Event
	batches  [][]hashchain.Identifier
	signer   common.Address
	txCount  int
	receipts map[common.Hash]*provider.Receipt

	// failOnBatch makes the n-th query (0-based) fail.
	failOnBatch int
	// publishErr is returned by PublishRecord when set.
	publishErr error
	// extra events appended to every query result.
	extra []provider.Event
	// autoMine controls whether published transactions get a receipt.
	autoMine     bool
	revertOnMine bool
}

func newLedger() *ledger {
	return &ledger{
		signer:      alice,
		receipts:    make(map[common.Hash]*provider.Receipt),
		failOnBatch: -1,
		autoMine:    true,
	}
}

// seed registers a record at chain position i.
func (l *ledger) seed(c *hashchain.Chain, i int, signer common.Address, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := time.Unix(1700000000+int64(i), 0).UTC()
	l.events = append(l.events, provider.Event{
		Identifier:  c.At(i),
		Signer:      signer,
		Time:        &t,
		Data:        data,
		TxHash:      common.HexToHash(fmt.Sprintf("0x%064x", 0xa000+i)),
		BlockNumber: uint64(1000 + i),
	})
}

func (l *ledger) Kind() string { return "ledger" }

func (l *ledger) QueryRecords(_ context.Context, ids []hashchain.Identifier) ([]provider.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.batches)
	l.batches = append(l.batches, append([]hashchain.Identifier(nil), ids...))
	if n == l.failOnBatch {
		return nil, &provider.ProviderError{Provider: "ledger", Op: "query", Message: "node unavailable"}
	}
	want := make(map[hashchain.Identifier]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []provider.Event
	for _, ev := range l.events {
		if want[ev.Identifier] {
			out = append(out, ev)
		}
	}
	return append(out, l.extra...), nil
}

func (l *ledger) PublishRecord(_ context.Context, id hashchain.Identifier, data []byte) (*provider.Submission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.publishErr != nil {
		return nil, l.publishErr
	}
	l.txCount++
	tx := common.HexToHash(fmt.Sprintf("0x%064x", 0xf000+l.txCount))
	block := uint64(2000 + l.txCount)
	status := uint64(1)
	if l.revertOnMine {
		status = 0
	}
	if status == 1 {
		now := time.Unix(1800000000, 0).UTC()
		l.events = append(l.events, provider.Event{
			Identifier:  id,
			Signer:      l.signer,
			Time:        &now,
			Data:        data,
			TxHash:      tx,
			BlockNumber: block,
		})
	}
	if l.autoMine {
		l.receipts[tx] = &provider.Receipt{TxHash: tx, Status: status, BlockNumber: block}
	}
	return &provider.Submission{TxHash: tx, Signer: l.signer}, nil
}

func (l *ledger) TransactionReceipt(_ context.Context, tx common.Hash) (*provider.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.receipts[tx], nil
}

func (l *ledger) queried() [][]hashchain.Identifier {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]hashchain.Identifier(nil), l.batches...)
}

func (l *ledger) published() []provider.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []provider.Event
	for _, ev := range l.events {
		if ev.BlockNumber >= 2000 {
			out = append(out, ev)
		}
	}
	return out
}
