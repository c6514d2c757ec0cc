package secrets

import (
	"fmt"
	"strings"
)

// UnsupportedSchemeError is returned for a reference such as "vault://x"
// whose scheme has no registered resolver.
type UnsupportedSchemeError struct {
	Scheme string
	// Known lists the schemes that are registered, sorted.
	Known []string
}

func (e *UnsupportedSchemeError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("no resolver for %s:// references", e.Scheme)
	}
	return fmt.Sprintf("no resolver for %s:// references (use one of: %s)",
		e.Scheme, strings.Join(e.Known, ", "))
}

// InvalidReferenceError is a reference the resolver cannot parse, such as
// an awssm:// reference with no secret ID.
type InvalidReferenceError struct {
	Reference string
	Reason    string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("malformed reference %q: %s", e.Reference, e.Reason)
}

// NotFoundError means the backend answered but holds no value. An empty
// value counts as missing, since an empty API key or signer key is never
// usable.
type NotFoundError struct {
	Reference string
	Backend   string
}

func (e *NotFoundError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("%s resolved to nothing", e.Reference)
	}
	return fmt.Sprintf("%s resolved to nothing in %s", e.Reference, e.Backend)
}

// BackendError is a failure talking to the secret store itself. Fix, when
// set, is printed under the message as the command to run.
type BackendError struct {
	Backend   string
	Reference string
	Reason    string
	Fix       string
	Err       error
}

func (e *BackendError) Error() string {
	if e.Fix == "" {
		return fmt.Sprintf("resolving %s via %s: %s", e.Reference, e.Backend, e.Reason)
	}
	return fmt.Sprintf("resolving %s via %s: %s\n\n  %s", e.Reference, e.Backend, e.Reason, e.Fix)
}

func (e *BackendError) Unwrap() error { return e.Err }
