package signature

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"

	"github.com/majorcontext/opensig/internal/annotation"
	"github.com/majorcontext/opensig/internal/provider"
)

// DefaultConfirmTimeout bounds the confirmation wait.
const DefaultConfirmTimeout = 10 * time.Minute

// Publisher appends records to a document's chain.
type Publisher struct {
	Provider provider.Provider
	// CallTimeout bounds the publish call and each receipt poll.
	CallTimeout time.Duration
	// ConfirmTimeout bounds the whole confirmation wait.
	ConfirmTimeout time.Duration
	// PollInterval separates receipt polls.
	PollInterval time.Duration
	// Clock drives confirmation timing. Defaults to the real clock.
	Clock clockwork.Clock
	// Cipher encrypts annotations that ask for it.
	Cipher CipherFunc
}

// NewPublisher returns a publisher with default settings.
func NewPublisher(p provider.Provider) *Publisher {
	return &Publisher{
		Provider:       p,
		CallTimeout:    DefaultCallTimeout,
		ConfirmTimeout: DefaultConfirmTimeout,
		PollInterval:   provider.DefaultPollInterval,
	}
}

// Publication is the outcome of Sign.
type Publication struct {
	// Cancelled is set when the signer declined. Nothing was published and
	// every other field is zero.
	Cancelled bool

	Record      Record
	Signer      common.Address
	TxHash      common.Hash
	ExplorerURL string

	Confirmation *Confirmation
}

// Sign publishes a at the first unused position of the session's chain.
// The session must have completed a discovery pass. The returned record is
// pending; the confirmation handle resolves once the transaction is mined
// and the network's confirmation latency has passed.
func (p *Publisher) Sign(ctx context.Context, s *Session, a annotation.Annotation) (*Publication, error) {
	s.mu.Lock()
	if !s.discovered {
		s.mu.Unlock()
		return nil, &PreconditionError{Op: "sign", Reason: "discovery has not run for this session"}
	}

	index := s.highestLocked() + 1
	id := s.chain.At(index)

	c, err := cipherFor(p.Cipher, s.chain.Digest())
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	data, err := annotation.Encode(a, c)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("encoding annotation: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout())
	sub, err := p.Provider.PublishRecord(callCtx, id, data)
	cancel()
	if errors.Is(err, provider.ErrUserRejected) {
		s.mu.Unlock()
		s.logger.Info("signing cancelled by user", "index", index)
		return &Publication{Cancelled: true}, nil
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	rec := Record{
		Index:      index,
		Identifier: id,
		Signer:     sub.Signer,
		Data:       data,
		Annotation: annotation.Decode(data, c),
		TxHash:     sub.TxHash,
		Pending:    true,
	}
	s.pending[index] = rec
	s.mu.Unlock()

	s.logger.Info("signature published", "index", index, "tx", sub.TxHash.Hex(), "signer", sub.Signer.Hex())

	conf := p.confirm(ctx, s, index, sub.TxHash)
	return &Publication{
		Record:       rec,
		Signer:       sub.Signer,
		TxHash:       sub.TxHash,
		ExplorerURL:  s.Network.ExplorerTxURL(sub.TxHash.Hex()),
		Confirmation: conf,
	}, nil
}

func (p *Publisher) callTimeout() time.Duration {
	if p.CallTimeout > 0 {
		return p.CallTimeout
	}
	return DefaultCallTimeout
}

func (p *Publisher) confirm(parent context.Context, s *Session, index int, tx common.Hash) *Confirmation {
	timeout := p.ConfirmTimeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	opts := provider.WaitOptions{
		BlockTime:    s.Network.BlockTime(),
		PollInterval: p.PollInterval,
		Latency:      s.Network.ConfirmationLatency(),
		Timeout:      timeout,
		CallTimeout:  p.callTimeout(),
		Clock:        p.Clock,
	}

	// The wait outlives Sign's context; Cancel is the way to stop it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	c := &Confirmation{TxHash: tx, done: make(chan struct{}), cancel: cancel}
	go func() {
		defer cancel()
		receipt, err := provider.AwaitConfirmation(ctx, p.Provider, tx, opts)

		var reverted *provider.TransactionRevertedError
		switch {
		case err == nil:
			s.settle(index, receipt.BlockNumber, false)
			s.logger.Info("signature confirmed", "index", index, "tx", tx.Hex(), "block", receipt.BlockNumber)
		case errors.As(err, &reverted):
			s.settle(index, 0, true)
			s.logger.Warn("signature transaction reverted", "index", index, "tx", tx.Hex())
		default:
			s.logger.Warn("confirmation wait ended", "index", index, "tx", tx.Hex(), "error", err)
		}
		c.resolve(receipt, err)
	}()
	return c
}

// Confirmation tracks a published transaction until it is final.
type Confirmation struct {
	TxHash common.Hash

	done   chan struct{}
	cancel context.CancelFunc

	mu      sync.Mutex
	receipt *provider.Receipt
	err     error
}

func (c *Confirmation) resolve(r *provider.Receipt, err error) {
	c.mu.Lock()
	c.receipt, c.err = r, err
	c.mu.Unlock()
	close(c.done)
}

// Done is closed once the wait has resolved.
func (c *Confirmation) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the confirmation resolves or ctx ends. Ending ctx does
// not stop the background wait; use Cancel for that.
func (c *Confirmation) Wait(ctx context.Context) (*provider.Receipt, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receipt, c.err
}

// Cancel abandons the wait. Wait then returns context.Canceled unless the
// confirmation had already resolved.
func (c *Confirmation) Cancel() {
	c.cancel()
}
