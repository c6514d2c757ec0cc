package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/majorcontext/opensig/internal/hashchain"
	"github.com/majorcontext/opensig/internal/log"
	"github.com/majorcontext/opensig/internal/network"
)

const maxAnkrResponse = 16 << 20

// AnkrProvider reads registry events through the Ankr multichain
// aggregator (ankr_getLogs). Writes and receipts go to an optional writer.
type AnkrProvider struct {
	cfg      network.Config
	codec    *eventCodec
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	writer   Provider
	nextID   atomic.Uint64
}

func init() {
	Register(network.KindAnkr, func(ctx context.Context, cfg network.Config, opts Options) (Provider, error) {
		writer := opts.Writer
		if writer == nil && cfg.RPCEndpoint != "" {
			rpcCfg := cfg
			rpcCfg.Provider = network.KindRPC
			w, err := DialRPC(ctx, rpcCfg, cfg.RPCEndpoint, opts.Signer)
			if err != nil {
				return nil, err
			}
			writer = w
		}
		return NewAnkrProvider(cfg, opts.endpoint(cfg), opts.HTTPClient, writer)
	})
}

// NewAnkrProvider returns an aggregator-backed provider. client and writer
// may be nil.
func NewAnkrProvider(cfg network.Config, endpoint string, client *http.Client, writer Provider) (*AnkrProvider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("network %s: ankr provider requires an endpoint", cfg.ChainID)
	}
	codec, err := newEventCodec(cfg)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &AnkrProvider{
		cfg:      cfg,
		codec:    codec,
		endpoint: endpoint,
		client:   client,
		limiter:  limiter,
		writer:   writer,
	}, nil
}

func (p *AnkrProvider) Kind() string { return string(network.KindAnkr) }

type ankrRequest struct {
	ID      uint64        `json:"id"`
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  ankrLogParams `json:"params"`
}

type ankrLogParams struct {
	Blockchain string `json:"blockchain"`
	Address    string `json:"address"`
	FromBlock  uint64 `json:"fromBlock"`
	Topics     []any  `json:"topics"`
}

type ankrResponse struct {
	Result *struct {
		Logs json.RawMessage `json:"logs"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *AnkrProvider) QueryRecords(ctx context.Context, ids []hashchain.Identifier) ([]Event, error) {
	if err := checkWidth(len(ids), p.cfg.MaxBatchWidth); err != nil {
		return nil, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "query", Message: "rate limiter", Err: err}
	}

	body, err := json.Marshal(ankrRequest{
		ID:      p.nextID.Add(1),
		JSONRPC: "2.0",
		Method:  "ankr_getLogs",
		Params: ankrLogParams{
			Blockchain: p.cfg.Blockchain,
			Address:    p.codec.contract.Hex(),
			FromBlock:  p.cfg.CreationBlock,
			Topics:     p.codec.topicsJSON(ids),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding ankr_getLogs request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "query", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "query", Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxAnkrResponse))
	if err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "query", StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider:   p.Kind(),
			Op:         "query",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(payload)),
		}
	}

	var env ankrResponse
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "query", Message: "malformed response", Err: err}
	}
	if env.Error != nil && env.Error.Code != 0 {
		return nil, &ProviderError{Provider: p.Kind(), Op: "query", Code: env.Error.Code, Message: env.Error.Message}
	}
	if env.Result == nil || len(env.Result.Logs) == 0 || string(env.Result.Logs) == "null" {
		log.Component("provider").Warn("aggregator response has no logs field", "chain_id", p.cfg.ChainID, "ids", len(ids))
		return nil, nil
	}
	var logs []rawLog
	if err := json.Unmarshal(env.Result.Logs, &logs); err != nil {
		log.Component("provider").Warn("aggregator returned malformed logs", "chain_id", p.cfg.ChainID, "error", err)
		return nil, nil
	}

	events, err := p.codec.decodeAll(logs)
	if err != nil {
		return nil, &ProviderError{Provider: p.Kind(), Op: "query", Err: err}
	}
	log.Component("provider").Debug("ankr_getLogs", "chain_id", p.cfg.ChainID, "ids", len(ids), "events", len(events))
	return events, nil
}

func (p *AnkrProvider) PublishRecord(ctx context.Context, id hashchain.Identifier, data []byte) (*Submission, error) {
	if p.writer == nil {
		return nil, ErrReadOnly
	}
	return p.writer.PublishRecord(ctx, id, data)
}

func (p *AnkrProvider) TransactionReceipt(ctx context.Context, tx common.Hash) (*Receipt, error) {
	if p.writer == nil {
		return nil, ErrReadOnly
	}
	return p.writer.TransactionReceipt(ctx, tx)
}

// Close releases the write-side provider, if it holds a connection.
func (p *AnkrProvider) Close() {
	if c, ok := p.writer.(interface{ Close() }); ok {
		c.Close()
	}
}
