package annotation

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Cipher transforms an annotation payload before it is framed.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// NoopCipher leaves payloads unchanged. Records published with it and the
// encrypted flag set are NOT confidential; the flag only signals intent.
type NoopCipher struct{}

func (NoopCipher) Encrypt(p []byte) ([]byte, error) { return append([]byte(nil), p...), nil }
func (NoopCipher) Decrypt(c []byte) ([]byte, error) { return append([]byte(nil), c...), nil }

// hkdfInfo binds derived keys to this use.
const hkdfInfo = "opensig annotation v0"

// ErrCiphertextTooShort is returned when a payload cannot hold a nonce and tag.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// DocumentCipher encrypts with XChaCha20-Poly1305 under a key derived from
// the document digest, so anyone holding the document can read the
// annotation and nobody else can. Output is nonce || ciphertext.
type DocumentCipher struct {
	aead cipher.AEAD
}

// NewDocumentCipher derives a cipher from a 32-byte document digest.
func NewDocumentCipher(digest [32]byte) (*DocumentCipher, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, digest[:], nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving annotation key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return &DocumentCipher{aead: aead}, nil
}

// Encrypt seals plaintext with a random nonce.
func (c *DocumentCipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a payload produced by Encrypt.
func (c *DocumentCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(ciphertext) < ns+c.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	return c.aead.Open(nil, ciphertext[:ns], ciphertext[ns:], nil)
}
