package signature

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/majorcontext/opensig/internal/annotation"
	"github.com/majorcontext/opensig/internal/hashchain"
	"github.com/majorcontext/opensig/internal/network"
	"github.com/majorcontext/opensig/internal/provider"
)

// OpenFunc builds the provider for a network.
type OpenFunc func(ctx context.Context, cfg network.Config) (provider.Provider, error)

// Settings tunes engines and publishers created by a Service.
type Settings struct {
	CallTimeout    time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Clock          clockwork.Clock
	Cipher         CipherFunc
}

// Service resolves chain IDs to providers and runs discovery and
// publication against them. Providers are opened once per chain.
type Service struct {
	registry *network.Registry
	open     OpenFunc
	settings Settings

	mu        sync.Mutex
	providers map[network.ChainID]provider.Provider
}

// NewService returns a service over registry.
func NewService(registry *network.Registry, open OpenFunc, settings Settings) *Service {
	return &Service{
		registry:  registry,
		open:      open,
		settings:  settings,
		providers: make(map[network.ChainID]provider.Provider),
	}
}

// Network returns the configuration of chain.
func (s *Service) Network(chain network.ChainID) (network.Config, error) {
	return s.registry.Lookup(chain)
}

// Provider returns the cached provider for chain, opening it on first use.
func (s *Service) Provider(ctx context.Context, chain network.ChainID) (provider.Provider, error) {
	cfg, err := s.registry.Lookup(chain)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.providers[chain]; ok {
		return p, nil
	}
	p, err := s.open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.providers[chain] = p
	return p, nil
}

// Engine returns a discovery engine for chain.
func (s *Service) Engine(ctx context.Context, chain network.ChainID) (*Engine, error) {
	p, err := s.Provider(ctx, chain)
	if err != nil {
		return nil, err
	}
	e := NewEngine(p)
	if s.settings.CallTimeout > 0 {
		e.CallTimeout = s.settings.CallTimeout
	}
	e.Cipher = s.settings.Cipher
	return e, nil
}

// Publisher returns a publisher for chain.
func (s *Service) Publisher(ctx context.Context, chain network.ChainID) (*Publisher, error) {
	p, err := s.Provider(ctx, chain)
	if err != nil {
		return nil, err
	}
	pub := NewPublisher(p)
	if s.settings.CallTimeout > 0 {
		pub.CallTimeout = s.settings.CallTimeout
	}
	if s.settings.ConfirmTimeout > 0 {
		pub.ConfirmTimeout = s.settings.ConfirmTimeout
	}
	if s.settings.PollInterval > 0 {
		pub.PollInterval = s.settings.PollInterval
	}
	pub.Clock = s.settings.Clock
	pub.Cipher = s.settings.Cipher
	return pub, nil
}

// Verify starts a session for digest on chain and runs discovery.
func (s *Service) Verify(ctx context.Context, chain network.ChainID, digest hashchain.Digest) (*Session, []Record, error) {
	cfg, err := s.registry.Lookup(chain)
	if err != nil {
		return nil, nil, err
	}
	e, err := s.Engine(ctx, chain)
	if err != nil {
		return nil, nil, err
	}
	sess := NewSession(digest, cfg)
	records, err := e.Discover(ctx, sess)
	if err != nil {
		return sess, nil, err
	}
	return sess, records, nil
}

// Reverify repeats discovery for an existing session.
func (s *Service) Reverify(ctx context.Context, sess *Session) ([]Record, error) {
	e, err := s.Engine(ctx, sess.Network.ChainID)
	if err != nil {
		return nil, err
	}
	return e.Reverify(ctx, sess)
}

// Sign publishes a on the session's network.
func (s *Service) Sign(ctx context.Context, sess *Session, a annotation.Annotation) (*Publication, error) {
	pub, err := s.Publisher(ctx, sess.Network.ChainID)
	if err != nil {
		return nil, err
	}
	return pub.Sign(ctx, sess, a)
}

// Close releases providers that hold connections.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for chain, p := range s.providers {
		if c, ok := p.(interface{ Close() }); ok {
			c.Close()
		}
		delete(s.providers, chain)
	}
}
