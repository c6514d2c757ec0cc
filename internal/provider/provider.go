package provider

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/majorcontext/opensig/internal/hashchain"
)

// Provider reads and writes signature registry events on one network.
// Implementations are safe for concurrent use.
type Provider interface {
	// Kind returns the variant name ("wallet", "rpc", "ankr").
	Kind() string

	// QueryRecords returns every registry event whose identifier is in ids.
	// Order is unspecified. len(ids) must not exceed the network's batch width.
	QueryRecords(ctx context.Context, ids []hashchain.Identifier) ([]Event, error)

	// PublishRecord submits registerSignature(id, data) and returns once the
	// transaction has been accepted for broadcast.
	PublishRecord(ctx context.Context, id hashchain.Identifier, data []byte) (*Submission, error)

	// TransactionReceipt returns the receipt for tx, or nil and no error
	// while the transaction is still pending.
	TransactionReceipt(ctx context.Context, tx common.Hash) (*Receipt, error)
}

// Event is one decoded Signature log.
type Event struct {
	Identifier hashchain.Identifier
	Signer     common.Address
	// Time is the block time recorded by the contract. Nil for ABI versions
	// that do not carry it.
	Time        *time.Time
	Data        []byte
	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint
	// Removed marks a log retracted by a reorg. It still counts toward the
	// batch size but is not a record.
	Removed bool
}

// Submission describes a broadcast transaction.
type Submission struct {
	TxHash common.Hash
	Signer common.Address
}

// Receipt is the subset of a transaction receipt the protocol uses.
type Receipt struct {
	TxHash      common.Hash
	Status      uint64
	BlockNumber uint64
	GasUsed     uint64
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r.Status == 1
}
