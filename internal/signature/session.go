package signature

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/majorcontext/opensig/internal/hashchain"
	"github.com/majorcontext/opensig/internal/id"
	"github.com/majorcontext/opensig/internal/log"
	"github.com/majorcontext/opensig/internal/network"
)

// Session is the discovery state of one document on one network. Discover
// and Sign lock the session for their whole duration, so the identifier
// chain cursor is never shared between concurrent calls.
type Session struct {
	ID      string
	Network network.Config

	logger *slog.Logger

	mu         sync.Mutex
	chain      *hashchain.Chain
	discovered bool
	found      int // highest index observed by discovery, -1 for none
	records    []Record
	pending    map[int]Record
}

// NewSession starts a session for the document with digest d.
func NewSession(d hashchain.Digest, cfg network.Config) *Session {
	sid := id.Generate(id.Session)
	return &Session{
		ID:      sid,
		Network: cfg,
		logger:  log.With("session_id", sid, "chain_id", cfg.ChainID),
		chain:   hashchain.Derive(d),
		found:   -1,
		pending: make(map[int]Record),
	}
}

// Digest returns the document digest.
func (s *Session) Digest() hashchain.Digest {
	return s.chain.Digest()
}

// Discovered reports whether at least one discovery pass has completed.
func (s *Session) Discovered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discovered
}

// HighestIndex returns the highest chain position known to be used, counting
// records published by this session that discovery has not seen yet.
// It returns -1 when no position is used.
func (s *Session) HighestIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highestLocked()
}

// Records returns the last discovery result followed by pending records.
func (s *Session) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) highestLocked() int {
	h := s.found
	for idx := range s.pending {
		if idx > h {
			h = idx
		}
	}
	return h
}

func (s *Session) snapshotLocked() []Record {
	out := make([]Record, 0, len(s.records)+len(s.pending))
	out = append(out, s.records...)
	for _, r := range s.pending {
		out = append(out, r)
	}
	sortRecords(out)
	return out
}

// applyDiscovery stores a completed pass and drops pending records that
// discovery has now observed.
func (s *Session) applyDiscovery(records []Record, highest int) {
	s.records = records
	s.found = highest
	s.discovered = true
	for _, r := range records {
		if p, ok := s.pending[r.Index]; ok {
			s.logger.Debug("pending record observed", "index", r.Index, "tx", p.TxHash.Hex())
			delete(s.pending, r.Index)
		}
	}
}

func (s *Session) addPending(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[r.Index] = r
}

// settle updates a pending record once its confirmation resolves. A
// reverted transaction frees the chain position again.
func (s *Session) settle(index int, blockNumber uint64, reverted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.pending[index]
	if !ok {
		return
	}
	if reverted {
		delete(s.pending, index)
		return
	}
	r.BlockNumber = blockNumber
	s.pending[index] = r
}

func sortRecords(rs []Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Index != rs[j].Index {
			return rs[i].Index < rs[j].Index
		}
		if rs[i].BlockNumber != rs[j].BlockNumber {
			return rs[i].BlockNumber < rs[j].BlockNumber
		}
		return rs[i].TxHash.Hex() < rs[j].TxHash.Hex()
	})
}
