package secrets

import (
	"context"
	"os"
	"strings"
)

// EnvResolver reads env://NAME references from the process environment.
type EnvResolver struct {
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Scheme returns "env".
func (r *EnvResolver) Scheme() string { return "env" }

// Resolve returns the value of the named variable.
func (r *EnvResolver) Resolve(_ context.Context, reference string) (string, error) {
	name := strings.TrimPrefix(reference, "env://")
	if name == "" || strings.ContainsAny(name, "/=") {
		return "", &InvalidReferenceError{Reference: reference, Reason: "expected env://NAME"}
	}
	lookup := r.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(name)
	if !ok {
		return "", &NotFoundError{Reference: reference, Backend: "environment"}
	}
	return v, nil
}

func init() {
	Register(&EnvResolver{})
}
