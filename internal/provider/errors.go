package provider

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrReadOnly is returned by write operations on a provider that has no
	// write path configured.
	ErrReadOnly = errors.New("provider is read-only")
	// ErrUserRejected is returned when the wallet owner declines a request
	// (EIP-1193 code 4001).
	ErrUserRejected = errors.New("request rejected by user")
	// ErrBatchTooWide is returned when a query names more identifiers than
	// the network's batch width.
	ErrBatchTooWide = errors.New("identifier batch exceeds max batch width")
	// ErrConfirmationTimeout is returned when a receipt does not arrive
	// before the wait deadline.
	ErrConfirmationTimeout = errors.New("timed out waiting for confirmation")
	// ErrUnknownKind is returned by Open for an unregistered variant.
	ErrUnknownKind = errors.New("unknown provider kind")
)

// userRejectedCode is the EIP-1193 "user rejected request" code.
const userRejectedCode = 4001

// ProviderError reports a failed backend call.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int    // HTTP status for transport failures
	Code       int    // JSON-RPC error code from the response body
	Message    string // response body or error message
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Provider, e.Op)
	switch {
	case e.StatusCode != 0:
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
		if e.Message != "" {
			fmt.Fprintf(&b, ": %s", e.Message)
		}
	case e.Code != 0:
		fmt.Fprintf(&b, ": error %d: %s", e.Code, e.Message)
	case e.Message != "":
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TransactionRevertedError is returned when a published transaction was
// mined but reverted.
type TransactionRevertedError struct {
	Receipt *Receipt
}

func (e *TransactionRevertedError) Error() string {
	return fmt.Sprintf("transaction %s reverted in block %d", e.Receipt.TxHash.Hex(), e.Receipt.BlockNumber)
}

// codedError matches JSON-RPC errors that expose a numeric code, including
// go-ethereum's rpc.Error.
type codedError interface {
	error
	ErrorCode() int
}

// isUserRejection reports whether err carries the EIP-1193 rejection code.
func isUserRejection(err error) bool {
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	var ce codedError
	return errors.As(err, &ce) && ce.ErrorCode() == userRejectedCode
}

func checkWidth(ids int, max int) error {
	if ids > max {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooWide, ids, max)
	}
	return nil
}
