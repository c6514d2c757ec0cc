package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/majorcontext/opensig/internal/hashchain"
	"github.com/majorcontext/opensig/internal/network"
)

// eventCodec builds log filters and decodes Signature events for one
// pinned ABI version. Topic positions are derived from the ABI so that
// versions with a different argument order decode correctly.
type eventCodec struct {
	contract common.Address
	abi      abi.ABI
	event    abi.Event

	signerTopic int
	idTopic     int
	timeArg     int // index into the non-indexed arguments, -1 if absent
	dataArg     int
}

func newEventCodec(cfg network.Config) (*eventCodec, error) {
	parsed, err := network.ParseABI(cfg.ABIVersion)
	if err != nil {
		return nil, err
	}
	ev := parsed.Events[network.EventName]
	c := &eventCodec{
		contract: cfg.ContractAddress(),
		abi:      parsed,
		event:    ev,
		timeArg:  -1,
		dataArg:  -1,
	}

	topic := 1
	for _, in := range ev.Inputs {
		if !in.Indexed {
			continue
		}
		switch {
		case in.Type.T == abi.AddressTy:
			c.signerTopic = topic
		case in.Type.T == abi.FixedBytesTy && in.Type.Size == hashchain.Size:
			c.idTopic = topic
		}
		topic++
	}
	for i, in := range ev.Inputs.NonIndexed() {
		switch in.Type.T {
		case abi.UintTy:
			c.timeArg = i
		case abi.BytesTy:
			c.dataArg = i
		}
	}
	if c.signerTopic == 0 || c.idTopic == 0 || c.dataArg < 0 {
		return nil, fmt.Errorf("abi %s: %s event lacks signer, identifier or data", cfg.ABIVersion, network.EventName)
	}
	return c, nil
}

// topics returns the filter topic list: event signature first, identifier
// set at its indexed position, wildcards elsewhere.
func (c *eventCodec) topics(ids []hashchain.Identifier) [][]common.Hash {
	out := make([][]common.Hash, c.idTopic+1)
	out[0] = []common.Hash{c.event.ID}
	set := make([]common.Hash, len(ids))
	for i, id := range ids {
		set[i] = common.Hash(id)
	}
	out[c.idTopic] = set
	return out
}

// topicsJSON is topics in the shape eth_getLogs expects over JSON.
func (c *eventCodec) topicsJSON(ids []hashchain.Identifier) []any {
	out := make([]any, c.idTopic+1)
	out[0] = c.event.ID.Hex()
	set := make([]string, len(ids))
	for i, id := range ids {
		set[i] = common.Hash(id).Hex()
	}
	out[c.idTopic] = set
	return out
}

func (c *eventCodec) packRegister(id hashchain.Identifier, data []byte) ([]byte, error) {
	if data == nil {
		data = []byte{}
	}
	return c.abi.Pack(network.RegisterMethod, [32]byte(id), data)
}

func (c *eventCodec) decode(l rawLog) (Event, error) {
	need := c.idTopic
	if c.signerTopic > need {
		need = c.signerTopic
	}
	if len(l.Topics) <= need {
		return Event{}, fmt.Errorf("log %s/%d: expected %d topics, got %d", l.TxHash.Hex(), l.LogIndex, need+1, len(l.Topics))
	}
	if l.Topics[0] != c.event.ID {
		return Event{}, fmt.Errorf("log %s/%d: unexpected event topic %s", l.TxHash.Hex(), l.LogIndex, l.Topics[0].Hex())
	}
	if l.Address != (common.Address{}) && l.Address != c.contract {
		return Event{}, fmt.Errorf("log %s/%d: emitted by %s, not the registry", l.TxHash.Hex(), l.LogIndex, l.Address.Hex())
	}

	values, err := c.event.Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return Event{}, fmt.Errorf("log %s/%d: unpacking data: %w", l.TxHash.Hex(), l.LogIndex, err)
	}

	ev := Event{
		Identifier:  hashchain.Identifier(l.Topics[c.idTopic]),
		Signer:      common.BytesToAddress(l.Topics[c.signerTopic].Bytes()),
		TxHash:      l.TxHash,
		BlockNumber: uint64(l.BlockNumber),
		LogIndex:    uint(l.LogIndex),
	}
	if data, ok := values[c.dataArg].([]byte); ok {
		ev.Data = data
	}
	if c.timeArg >= 0 {
		if secs, ok := values[c.timeArg].(*big.Int); ok && secs.IsInt64() {
			t := time.Unix(secs.Int64(), 0).UTC()
			ev.Time = &t
		}
	}
	return ev, nil
}

// decodeAll decodes logs one to one. Logs removed by a reorg come back
// flagged rather than dropped so callers see the size of the batch.
func (c *eventCodec) decodeAll(logs []rawLog) ([]Event, error) {
	events := make([]Event, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			ev, err := c.decode(l)
			if err != nil {
				ev = Event{TxHash: l.TxHash, BlockNumber: uint64(l.BlockNumber), LogIndex: uint(l.LogIndex)}
			}
			ev.Removed = true
			events = append(events, ev)
			continue
		}
		ev, err := c.decode(l)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// rawLog is a log entry as returned over JSON by nodes, wallets and the
// aggregator. Numeric fields accept hex strings or plain numbers since the
// aggregator is not consistent about it.
type rawLog struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        hexutil.Bytes  `json:"data"`
	BlockNumber quantity       `json:"blockNumber"`
	TxHash      common.Hash    `json:"transactionHash"`
	LogIndex    quantity       `json:"logIndex"`
	Removed     bool           `json:"removed"`
}

func fromTypesLog(l types.Log) rawLog {
	return rawLog{
		Address:     l.Address,
		Topics:      l.Topics,
		Data:        l.Data,
		BlockNumber: quantity(l.BlockNumber),
		TxHash:      l.TxHash,
		LogIndex:    quantity(l.Index),
		Removed:     l.Removed,
	}
}

// rawReceipt is the JSON form of eth_getTransactionReceipt.
type rawReceipt struct {
	TxHash      common.Hash `json:"transactionHash"`
	Status      quantity    `json:"status"`
	BlockNumber quantity    `json:"blockNumber"`
	GasUsed     quantity    `json:"gasUsed"`
}

func (r rawReceipt) receipt() *Receipt {
	return &Receipt{
		TxHash:      r.TxHash,
		Status:      uint64(r.Status),
		BlockNumber: uint64(r.BlockNumber),
		GasUsed:     uint64(r.GasUsed),
	}
}

var errBadQuantity = errors.New("invalid quantity")

type quantity uint64

func (q *quantity) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	var (
		v   uint64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if len(s) == 2 {
			*q = 0
			return nil
		}
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return fmt.Errorf("%w %q", errBadQuantity, s)
	}
	*q = quantity(v)
	return nil
}
