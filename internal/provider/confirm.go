package provider

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"

	"github.com/majorcontext/opensig/internal/log"
)

// Confirmation defaults.
const (
	DefaultPollInterval     = time.Second
	DefaultMaxReceiptErrors = 3
)

// WaitOptions controls AwaitConfirmation.
type WaitOptions struct {
	// BlockTime is waited once before the first receipt poll.
	BlockTime time.Duration
	// PollInterval separates receipt polls. Defaults to one second.
	PollInterval time.Duration
	// Latency is waited after a successful receipt, for networks whose
	// read path lags behind the node that mined the transaction.
	Latency time.Duration
	// Timeout bounds the whole wait. Zero means no bound beyond ctx.
	Timeout time.Duration
	// CallTimeout bounds each receipt request. Zero means none.
	CallTimeout time.Duration
	// MaxReceiptErrors is the number of consecutive failed polls tolerated.
	// Defaults to 3.
	MaxReceiptErrors int
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

func (o *WaitOptions) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxReceiptErrors <= 0 {
		o.MaxReceiptErrors = DefaultMaxReceiptErrors
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
}

// AwaitConfirmation blocks until tx is mined and the configured latency has
// elapsed. A reverted transaction returns its receipt together with a
// *TransactionRevertedError.
func AwaitConfirmation(ctx context.Context, p Provider, tx common.Hash, opts WaitOptions) (*Receipt, error) {
	opts.applyDefaults()
	clock := opts.Clock

	var deadline <-chan time.Time
	if opts.Timeout > 0 {
		deadline = clock.After(opts.Timeout)
	}
	sleep := func(d time.Duration) error {
		if d <= 0 {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return ErrConfirmationTimeout
		case <-clock.After(d):
			return nil
		}
	}

	if err := sleep(opts.BlockTime); err != nil {
		return nil, err
	}

	failures := 0
	for {
		receipt, err := fetchReceipt(ctx, p, tx, opts.CallTimeout)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			log.Component("provider").Warn("receipt poll failed", "tx", tx.Hex(), "attempt", failures, "error", err)
			if failures >= opts.MaxReceiptErrors {
				return nil, err
			}
		case receipt == nil:
			failures = 0
		case !receipt.Succeeded():
			return receipt, &TransactionRevertedError{Receipt: receipt}
		default:
			log.Component("provider").Debug("transaction mined", "tx", tx.Hex(), "block", receipt.BlockNumber, "latency", opts.Latency)
			if err := sleep(opts.Latency); err != nil {
				return nil, err
			}
			return receipt, nil
		}
		if err := sleep(opts.PollInterval); err != nil {
			return nil, err
		}
	}
}

func fetchReceipt(ctx context.Context, p Provider, tx common.Hash, timeout time.Duration) (*Receipt, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.TransactionReceipt(ctx, tx)
}
