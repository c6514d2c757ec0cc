package signature

import (
	"errors"
	"fmt"

	"github.com/majorcontext/opensig/internal/provider"
)

// ErrOverfullBatch is returned when a provider answers a batch with more
// events than identifiers were asked for.
var ErrOverfullBatch = errors.New("provider returned more events than the batch width")

// PreconditionError reports an operation invoked out of order.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// TransactionRevertedError is returned by Confirmation.Wait when the
// published transaction reverted.
type TransactionRevertedError = provider.TransactionRevertedError
