// Package keystore keeps signer private keys.
//
// Keys are stored in the system keychain when one is available (macOS
// Keychain, Secret Service on Linux, Windows Credential Manager) and
// otherwise in files under ~/.opensig/keys with mode 0600. The file backend
// refuses to read a key whose file is readable by group or others.
package keystore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/majorcontext/opensig/internal/log"
	"github.com/zalando/go-keyring"
)

const (
	// ServiceName is the keychain service. OPENSIG_KEYRING_SERVICE
	// overrides it for test isolation.
	ServiceName = "opensig"
	// DefaultName is the key used when none is named.
	DefaultName = "default"
	// KeySize is the length of a secp256k1 private key.
	KeySize = 32
)

var (
	// ErrNotFound is returned when no backend holds the named key.
	ErrNotFound = errors.New("signer key not found")
	// ErrExists is returned by Put when the key exists and overwrite is off.
	ErrExists = errors.New("signer key already exists")
	// ErrInsecurePermissions is returned when a key file is group or world accessible.
	ErrInsecurePermissions = errors.New("key file has insecure permissions")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

func serviceName() string {
	if name := os.Getenv("OPENSIG_KEYRING_SERVICE"); name != "" {
		return name
	}
	return ServiceName
}

func account(name string) string { return "signer:" + name }

// EncodeKey returns the hex form stored by the backends.
func EncodeKey(key []byte) string {
	return hex.EncodeToString(key)
}

// DecodeKey parses a hex private key, with or without 0x prefix.
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid key encoding: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length: expected %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// Backend stores named keys.
type Backend interface {
	Get(name string) ([]byte, error)
	Set(name string, key []byte) error
	Delete(name string) error
	Name() string
}

type keychainBackend struct{}

func (keychainBackend) Get(name string) ([]byte, error) {
	encoded, err := keyring.Get(serviceName(), account(name))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keychain get: %w", err)
	}
	return DecodeKey(encoded)
}

func (keychainBackend) Set(name string, key []byte) error {
	if err := keyring.Set(serviceName(), account(name), EncodeKey(key)); err != nil {
		return fmt.Errorf("keychain set: %w", err)
	}
	return nil
}

func (keychainBackend) Delete(name string) error {
	err := keyring.Delete(serviceName(), account(name))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("keychain delete: %w", err)
	}
	return nil
}

func (keychainBackend) Name() string { return "system keychain" }

type fileBackend struct {
	dir string
}

func (f *fileBackend) path(name string) string {
	return filepath.Join(f.dir, name+".key")
}

func (f *fileBackend) Get(name string) ([]byte, error) {
	p := f.path(name)
	info, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return nil, fmt.Errorf("%w: %s has permissions %04o (expected 0600).\n"+
			"  The key may have been exposed. Move funds to a new key and run:\n"+
			"  opensig key delete %s",
			ErrInsecurePermissions, p, perm, name)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	return DecodeKey(string(data))
}

func (f *fileBackend) Set(name string, key []byte) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	lf, err := os.OpenFile(filepath.Join(f.dir, ".lock"), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("creating lock file: %w", err)
	}
	defer lf.Close()
	unlock, err := lockFile(lf)
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	defer unlock()

	tmp := f.path(name) + ".tmp"
	if err := os.WriteFile(tmp, []byte(EncodeKey(key)), 0o600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	if err := os.Rename(tmp, f.path(name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

func (f *fileBackend) Delete(name string) error {
	err := os.Remove(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting key file: %w", err)
	}
	return nil
}

func (f *fileBackend) Name() string { return "file (" + f.dir + ")" }

// Store reads and writes keys, preferring the primary backend.
type Store struct {
	primary  Backend
	fallback Backend
}

// New returns a store backed by the system keychain with a file fallback
// under dir.
func New(dir string) *Store {
	return &Store{primary: keychainBackend{}, fallback: &fileBackend{dir: dir}}
}

// NewWithBackends is for tests and custom setups.
func NewWithBackends(primary, fallback Backend) *Store {
	return &Store{primary: primary, fallback: fallback}
}

func checkName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid key name %q", name)
	}
	return nil
}

// Get returns the named key and the backend that held it.
func (s *Store) Get(name string) (key []byte, backend string, err error) {
	if err := checkName(name); err != nil {
		return nil, "", err
	}
	key, perr := s.primary.Get(name)
	if perr == nil {
		return key, s.primary.Name(), nil
	}
	key, ferr := s.fallback.Get(name)
	if ferr == nil {
		return key, s.fallback.Name(), nil
	}
	if errors.Is(perr, ErrNotFound) && errors.Is(ferr, ErrNotFound) {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if !errors.Is(ferr, ErrNotFound) {
		return nil, "", ferr
	}
	return nil, "", perr
}

// Put stores key under name. The keychain is tried first; if it fails
// the key goes to the file backend.
func (s *Store) Put(name string, key []byte, overwrite bool) (backend string, err error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if len(key) != KeySize {
		return "", fmt.Errorf("invalid key length: expected %d bytes, got %d", KeySize, len(key))
	}
	if !overwrite {
		if _, _, err := s.Get(name); err == nil {
			return "", fmt.Errorf("%w: %s", ErrExists, name)
		}
	}
	perr := s.primary.Set(name, key)
	if perr == nil {
		return s.primary.Name(), nil
	}
	log.Info("system keychain unavailable, using file-based key storage",
		"fallback", s.fallback.Name(), "error", perr)
	if ferr := s.fallback.Set(name, key); ferr != nil {
		return "", fmt.Errorf("storing signer key failed.\n"+
			"  Keychain (%s): %v\n"+
			"  File (%s): %v",
			s.primary.Name(), perr, s.fallback.Name(), ferr)
	}
	return s.fallback.Name(), nil
}

// Delete removes the key from every backend. It fails only when no
// backend held it or every backend errored.
func (s *Store) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	perr := s.primary.Delete(name)
	ferr := s.fallback.Delete(name)
	switch {
	case perr == nil || ferr == nil:
		if perr != nil && !errors.Is(perr, ErrNotFound) {
			log.Debug("keychain delete failed (file delete succeeded)", "error", perr)
		}
		return nil
	case errors.Is(perr, ErrNotFound) && errors.Is(ferr, ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	default:
		return fmt.Errorf("deleting key from all backends: %w",
			errors.Join(fmt.Errorf("keychain: %w", perr), fmt.Errorf("file: %w", ferr)))
	}
}
