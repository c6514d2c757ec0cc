// Package id generates short prefixed identifiers for signing sessions and
// CLI runs. They tag log records so one invocation can be followed through
// the debug log.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strconv"
	"time"
)

// Prefixes in use.
const (
	Session = "ses"
	Run     = "run"
)

// Generate returns "<prefix>_<8 hex chars>" built from 4 random bytes.
func Generate(prefix string) string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		ns := strconv.FormatInt(time.Now().UnixNano(), 16)
		return prefix + "_" + ns[len(ns)-8:]
	}
	return prefix + "_" + hex.EncodeToString(b)
}

var pattern = regexp.MustCompile(`^([a-z]+)_[0-9a-f]{8}$`)

// Valid reports whether s was produced by Generate(prefix).
func Valid(s, prefix string) bool {
	m := pattern.FindStringSubmatch(s)
	return m != nil && m[1] == prefix
}
