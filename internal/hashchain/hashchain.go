// Package hashchain derives the sequence of unlinkable signature identifiers
// for a document.
//
// Given the SHA-256 digest d of a document, the chain is
//
//	chain[0] = SHA-256(d)
//	chain[i] = SHA-256(d || chain[i-1])
//
// Each published identifier reveals nothing about its neighbours or about d,
// so only someone holding the document can link the records of that document.
package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Size is the byte length of digests and identifiers.
const Size = sha256.Size

// Digest is the SHA-256 hash of a document's contents.
type Digest [Size]byte

// Identifier is one element of a document's identifier chain.
type Identifier [Size]byte

// String returns the 0x-prefixed hex encoding of the digest.
func (d Digest) String() string {
	return "0x" + hex.EncodeToString(d[:])
}

// String returns the 0x-prefixed hex encoding of the identifier.
func (id Identifier) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// MarshalText encodes the digest as 0x-prefixed hex.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// MarshalText encodes the identifier as 0x-prefixed hex.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// HashBytes returns the digest of data.
func HashBytes(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// HashReader returns the digest of everything read from r.
func HashReader(r io.Reader) (Digest, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, fmt.Errorf("hashing document: %w", err)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// HashFile returns the digest of the file at path.
func HashFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()
	return HashReader(f)
}

// ParseDigest parses a hex digest with or without the 0x prefix.
func ParseDigest(s string) (Digest, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if len(b) != Size {
		return Digest{}, fmt.Errorf("invalid digest length: expected %d bytes, got %d", Size, len(b))
	}
	var d Digest
	copy(d[:], b)
	return d, nil
}

// Chain is a memoized, restartable identifier chain for one digest.
//
// Values are computed lazily and never discarded. The cursor marks the next
// position Next will issue. A Chain is not safe for concurrent use; callers
// sharing one must serialize access.
type Chain struct {
	digest Digest
	ids    []Identifier
	cursor int
}

// Derive creates a chain seeded by d.
func Derive(d Digest) *Chain {
	return &Chain{digest: d}
}

// Digest returns the seed digest.
func (c *Chain) Digest() Digest {
	return c.digest
}

// Next returns the next n identifiers and advances the cursor by n.
func (c *Chain) Next(n int) []Identifier {
	if n <= 0 {
		return nil
	}
	c.materialize(c.cursor + n)
	out := make([]Identifier, n)
	copy(out, c.ids[c.cursor:c.cursor+n])
	c.cursor += n
	return out
}

// Reset moves the cursor so the next call to Next starts at position i.
// Memoized values are kept.
func (c *Chain) Reset(i int) {
	if i < 0 {
		i = 0
	}
	c.cursor = i
}

// Cursor returns the position the next call to Next will start at.
func (c *Chain) Cursor() int {
	return c.cursor
}

// Len returns the number of materialized identifiers.
func (c *Chain) Len() int {
	return len(c.ids)
}

// At returns the identifier at position i, materializing the prefix as needed.
// The cursor is not moved.
func (c *Chain) At(i int) Identifier {
	if i < 0 {
		panic(fmt.Sprintf("hashchain: negative index %d", i))
	}
	c.materialize(i + 1)
	return c.ids[i]
}

// IndexOf returns the position of id within the materialized prefix.
// Identifiers beyond what has been requested are reported as not found.
func (c *Chain) IndexOf(id Identifier) (int, bool) {
	for i := range c.ids {
		if c.ids[i] == id {
			return i, true
		}
	}
	return -1, false
}

// materialize extends the memo so that it holds at least n identifiers.
func (c *Chain) materialize(n int) {
	if len(c.ids) >= n {
		return
	}
	if len(c.ids) == 0 {
		c.ids = append(c.ids, Identifier(sha256.Sum256(c.digest[:])))
	}
	buf := make([]byte, 2*Size)
	copy(buf, c.digest[:])
	for i := len(c.ids); i < n; i++ {
		copy(buf[Size:], c.ids[i-1][:])
		c.ids = append(c.ids, Identifier(sha256.Sum256(buf)))
	}
}
