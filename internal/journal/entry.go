// Package journal keeps a local, tamper-evident history of verifications
// and publications.
//
// Entries are hash-chained: each entry's hash covers its sequence number,
// timestamp, kind, the previous entry's hash and its payload, so editing or
// deleting a row breaks every later link.
package journal

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies what an entry records.
type Kind string

const (
	KindVerify  Kind = "verify"
	KindPublish Kind = "publish"
	KindConfirm Kind = "confirm"
)

// FirstSequence is the sequence number of the first entry; 0 means "none".
const FirstSequence uint64 = 1

// VerifyData records a discovery pass.
type VerifyData struct {
	Document string `json:"document"` // file path or URL
	Digest   string `json:"digest"`
	ChainID  uint64 `json:"chain_id"`
	Records  int    `json:"records"`
	Highest  int    `json:"highest"`
	Error    string `json:"error,omitempty"`
}

// PublishData records a submitted signature transaction.
type PublishData struct {
	Document   string `json:"document"`
	Digest     string `json:"digest"`
	ChainID    uint64 `json:"chain_id"`
	Index      int    `json:"index"`
	Identifier string `json:"identifier"`
	TxHash     string `json:"tx_hash,omitempty"`
	Signer     string `json:"signer,omitempty"`
	Annotation string `json:"annotation"` // annotation type, never its content
	Encrypted  bool   `json:"encrypted,omitempty"`
	Cancelled  bool   `json:"cancelled,omitempty"`
}

// Confirmation outcomes.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeReverted  = "reverted"
	OutcomeAbandoned = "abandoned"
)

// ConfirmData records how a publication ended.
type ConfirmData struct {
	ChainID uint64 `json:"chain_id"`
	TxHash  string `json:"tx_hash"`
	Outcome string `json:"outcome"`
	Block   uint64 `json:"block,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Entry is one hash-chained journal row.
type Entry struct {
	Sequence uint64          `json:"seq"`
	Time     time.Time       `json:"ts"`
	Kind     Kind            `json:"kind"`
	PrevHash string          `json:"prev"`
	Data     json.RawMessage `json:"data"`
	Hash     string          `json:"hash"`
}

func newEntry(seq uint64, prev string, kind Kind, data any, ts time.Time) (*Entry, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s data: %w", kind, err)
	}
	e := &Entry{
		Sequence: seq,
		Time:     ts.UTC(),
		Kind:     kind,
		PrevHash: prev,
		Data:     raw,
	}
	e.Hash = e.computeHash()
	return e, nil
}

// computeHash returns hex(SHA-256(seq || ts || kind || prev || data)).
func (e *Entry) computeHash() string {
	h := sha256.New()
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], e.Sequence)
	h.Write(seq[:])
	h.Write([]byte(e.Time.Format(time.RFC3339Nano)))
	h.Write([]byte(e.Kind))
	h.Write([]byte(e.PrevHash))
	h.Write(e.Data)
	return hex.EncodeToString(h.Sum(nil))
}

// Valid reports whether the stored hash matches the entry's contents.
func (e *Entry) Valid() bool {
	return e.Hash == e.computeHash()
}

// Decode unmarshals the payload into v.
func (e *Entry) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}
