// Package annotation encodes the small versioned payload attached to each
// on-chain signature record.
//
// Layout (hex form is "0x" followed by these bytes):
//
//	[version][type|flags][payload...]
//
// Bit 7 of the type byte marks an encrypted payload; bits 0-6 hold the
// content type. Strings are stored as big-endian UTF-16 code units. An empty
// annotation is encoded as zero bytes.
package annotation

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"unicode/utf16"
)

// Version is the only format version this package writes.
const Version byte = 0x00

const (
	encryptedFlag byte = 0x80
	typeMask      byte = 0x7f

	wireString byte = 0x00
	wireBytes  byte = 0x01
)

// minEncodedLen is the shortest non-empty payload that can carry content.
const minEncodedLen = 3

// Type is the decoded content type of an annotation.
type Type int

const (
	TypeNone Type = iota
	TypeString
	TypeBytes
	TypeInvalid
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	case TypeInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// MarshalText renders the type name in JSON output.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Annotation is user data bound to a signature record.
type Annotation struct {
	Version   byte   `json:"version"`
	Type      Type   `json:"type"`
	Encrypted bool   `json:"encrypted"`
	Content   string `json:"content,omitempty"` // TypeString
	Data      []byte `json:"data,omitempty"`    // TypeBytes
	Error     string `json:"error,omitempty"`   // TypeInvalid
}

// ErrInvalidType is returned when encoding an annotation whose type cannot
// be written.
var ErrInvalidType = errors.New("annotation type cannot be encoded")

// String returns a string annotation.
func String(s string) Annotation {
	return Annotation{Version: Version, Type: TypeString, Content: s}
}

// Bytes returns a raw byte annotation.
func Bytes(b []byte) Annotation {
	return Annotation{Version: Version, Type: TypeBytes, Data: b}
}

// None returns the empty annotation.
func None() Annotation {
	return Annotation{Version: Version, Type: TypeNone}
}

// IsEmpty reports whether the annotation carries no content.
func (a Annotation) IsEmpty() bool {
	switch a.Type {
	case TypeString:
		return a.Content == ""
	case TypeBytes:
		return len(a.Data) == 0
	case TypeNone:
		return true
	}
	return false
}

// Text returns a human-readable rendering of the content.
func (a Annotation) Text() string {
	switch a.Type {
	case TypeString:
		return a.Content
	case TypeBytes:
		return "0x" + hex.EncodeToString(a.Data)
	case TypeInvalid:
		return "<invalid: " + a.Error + ">"
	}
	return ""
}

// Encode serializes a for publication. When a.Encrypted is set the payload
// is passed through c before framing; a nil c is treated as NoopCipher.
func Encode(a Annotation, c Cipher) ([]byte, error) {
	if a.IsEmpty() {
		return []byte{}, nil
	}

	var (
		wireType byte
		payload  []byte
	)
	switch a.Type {
	case TypeString:
		wireType = wireString
		payload = encodeUTF16(a.Content)
	case TypeBytes:
		wireType = wireBytes
		payload = append([]byte(nil), a.Data...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, a.Type)
	}

	flags := wireType
	if a.Encrypted {
		if c == nil {
			c = NoopCipher{}
		}
		enc, err := c.Encrypt(payload)
		if err != nil {
			return nil, fmt.Errorf("encrypting annotation: %w", err)
		}
		payload = enc
		flags |= encryptedFlag
	}

	out := make([]byte, 0, 2+len(payload))
	out = append(out, Version, flags)
	return append(out, payload...), nil
}

// Decode parses on-chain bytes. It never fails: malformed input yields an
// annotation of TypeInvalid with a diagnostic in Error so that one bad record
// does not abort discovery of the rest.
func Decode(data []byte, c Cipher) Annotation {
	if len(data) == 0 {
		return None()
	}
	if len(data) < minEncodedLen {
		return invalid(data, fmt.Sprintf("data is %d bytes, need at least %d", len(data), minEncodedLen))
	}

	version, flags, payload := data[0], data[1], data[2:]
	if version != Version {
		return invalid(data, fmt.Sprintf("unsupported format version 0x%02x", version))
	}

	a := Annotation{Version: version, Encrypted: flags&encryptedFlag != 0}
	if a.Encrypted {
		if c == nil {
			c = NoopCipher{}
		}
		plain, err := c.Decrypt(payload)
		if err != nil {
			bad := invalid(data, "decryption failed: "+err.Error())
			bad.Encrypted = true
			return bad
		}
		payload = plain
	}

	switch flags & typeMask {
	case wireString:
		s, err := decodeUTF16(payload)
		if err != nil {
			return invalid(data, err.Error())
		}
		a.Type = TypeString
		a.Content = s
	case wireBytes:
		a.Type = TypeBytes
		a.Data = append([]byte(nil), payload...)
	default:
		return invalid(data, fmt.Sprintf("unknown content type 0x%02x", flags&typeMask))
	}
	return a
}

// EncodeHex is Encode rendered as a 0x-prefixed hex string.
func EncodeHex(a Annotation, c Cipher) (string, error) {
	b, err := Encode(a, c)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}

func invalid(data []byte, reason string) Annotation {
	return Annotation{
		Type:  TypeInvalid,
		Data:  append([]byte(nil), data...),
		Error: reason,
	}
}

func encodeUTF16(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2*len(units))
	for i, u := range units {
		binary.BigEndian.PutUint16(out[2*i:], u)
	}
	return out
}

func decodeUTF16(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("string payload has odd length %d", len(b))
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return string(utf16.Decode(units)), nil
}
