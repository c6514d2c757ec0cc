package signature

import (
	"context"
	"fmt"
	"time"

	"github.com/majorcontext/opensig/internal/annotation"
	"github.com/majorcontext/opensig/internal/hashchain"
	"github.com/majorcontext/opensig/internal/provider"
)

// DefaultCallTimeout bounds each provider call.
const DefaultCallTimeout = 30 * time.Second

// CipherFunc returns the annotation cipher for a document.
type CipherFunc func(hashchain.Digest) (annotation.Cipher, error)

// DocumentCipher is a CipherFunc keyed by the document digest.
func DocumentCipher(d hashchain.Digest) (annotation.Cipher, error) {
	c, err := annotation.NewDocumentCipher(d)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func cipherFor(f CipherFunc, d hashchain.Digest) (annotation.Cipher, error) {
	if f == nil {
		return annotation.NoopCipher{}, nil
	}
	return f(d)
}

// Engine discovers the records of a document.
type Engine struct {
	Provider provider.Provider
	// CallTimeout bounds each batch query. Defaults to DefaultCallTimeout.
	CallTimeout time.Duration
	// Cipher decrypts encrypted annotations. Nil leaves them as stored.
	Cipher CipherFunc
}

// NewEngine returns an engine with default settings.
func NewEngine(p provider.Provider) *Engine {
	return &Engine{Provider: p, CallTimeout: DefaultCallTimeout}
}

// Discover returns every record of the session's document, ordered by
// chain position. Batches of MaxBatchWidth identifiers are queried from
// position 0 until a batch yields fewer events than its width. On error
// nothing is returned and the session keeps its previous state.
func (e *Engine) Discover(ctx context.Context, s *Session) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	width := s.Network.MaxBatchWidth
	if width < 1 {
		return nil, fmt.Errorf("network %s: max batch width must be positive", s.Network.ChainID)
	}
	c, err := cipherFor(e.Cipher, s.chain.Digest())
	if err != nil {
		return nil, err
	}

	s.chain.Reset(0)
	var (
		found   []Record
		highest = -1
		batch   = 0
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := s.chain.Cursor()
		ids := s.chain.Next(width)
		positions := make(map[hashchain.Identifier]int, len(ids))
		for i, id := range ids {
			positions[id] = start + i
		}

		events, err := e.query(ctx, ids)
		if err != nil {
			s.logger.Debug("discovery failed", "batch", batch, "error", err)
			return nil, err
		}
		live := 0
		for _, ev := range events {
			if !ev.Removed {
				live++
			}
		}
		if live > width {
			return nil, fmt.Errorf("%w: %d events for %d identifiers", ErrOverfullBatch, live, width)
		}

		for _, ev := range events {
			if ev.Removed {
				s.logger.Debug("skipping log removed by reorg", "tx", ev.TxHash.Hex(), "block", ev.BlockNumber)
				continue
			}
			idx, ok := positions[ev.Identifier]
			if !ok {
				s.logger.Warn("ignoring event for identifier outside the batch", "identifier", ev.Identifier.String(), "tx", ev.TxHash.Hex())
				continue
			}
			found = append(found, recordFromEvent(idx, ev, c))
			if idx > highest {
				highest = idx
			}
		}
		s.logger.Debug("discovery batch", "batch", batch, "from", start, "events", len(events))

		// Removed logs count here: a full batch with a retracted entry may
		// still have a successor batch.
		if len(events) < width {
			break
		}
		batch++
	}

	sortRecords(found)
	s.applyDiscovery(found, highest)
	s.logger.Info("discovery complete", "records", len(found), "batches", batch+1, "highest", highest)
	return s.snapshotLocked(), nil
}

// Reverify repeats discovery on the session's memoized chain.
func (e *Engine) Reverify(ctx context.Context, s *Session) ([]Record, error) {
	return e.Discover(ctx, s)
}

func (e *Engine) query(ctx context.Context, ids []hashchain.Identifier) ([]provider.Event, error) {
	timeout := e.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.Provider.QueryRecords(ctx, ids)
}
