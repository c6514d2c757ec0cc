package signature

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/majorcontext/opensig/internal/annotation"
	"github.com/majorcontext/opensig/internal/hashchain"
	"github.com/majorcontext/opensig/internal/provider"
)

// Record is one signature of a document.
type Record struct {
	// Index is the record's position in the document's identifier chain.
	Index       int                   `json:"index"`
	Identifier  hashchain.Identifier  `json:"identifier"`
	Signer      common.Address        `json:"signer"`
	Time        *time.Time            `json:"time,omitempty"`
	Data        []byte                `json:"-"`
	Annotation  annotation.Annotation `json:"annotation"`
	TxHash      common.Hash           `json:"tx_hash"`
	BlockNumber uint64                `json:"block_number,omitempty"`
	// Pending is set for records this process published that discovery has
	// not yet observed.
	Pending bool `json:"pending,omitempty"`
}

// SignerID returns the checksummed signer address used to identify signers
// across documents.
func (r Record) SignerID() string {
	return r.Signer.Hex()
}

// IdentifierHex returns the identifier as 0x-prefixed hex.
func (r Record) IdentifierHex() string {
	return r.Identifier.String()
}

func (r Record) String() string {
	if r.Pending {
		return fmt.Sprintf("#%d %s (publishing)", r.Index, r.SignerID())
	}
	return fmt.Sprintf("#%d %s", r.Index, r.SignerID())
}

func recordFromEvent(index int, ev provider.Event, c annotation.Cipher) Record {
	return Record{
		Index:       index,
		Identifier:  ev.Identifier,
		Signer:      ev.Signer,
		Time:        ev.Time,
		Data:        ev.Data,
		Annotation:  annotation.Decode(ev.Data, c),
		TxHash:      ev.TxHash,
		BlockNumber: ev.BlockNumber,
	}
}
