// Package secrets resolves secret references such as aggregator API keys.
//
// A reference is a URI whose scheme selects a backend: env://ANKR_API_KEY
// reads the process environment, awssm://us-east-1/opensig/ankr#api_key
// reads AWS Secrets Manager. Values that are not references pass through
// Expand unchanged, so config files may hold either form.
package secrets

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Resolver resolves a secret reference to its plaintext value.
type Resolver interface {
	// Scheme returns the URI scheme this resolver handles (e.g., "env", "awssm").
	Scheme() string

	// Resolve fetches the secret value for the full reference URI.
	Resolve(ctx context.Context, reference string) (string, error)
}

var (
	resolvers = make(map[string]Resolver)
	mu        sync.RWMutex
)

// Register adds a resolver to the registry, replacing any resolver for the
// same scheme.
func Register(r Resolver) {
	mu.Lock()
	defer mu.Unlock()
	resolvers[r.Scheme()] = r
}

// Schemes returns the registered schemes, sorted.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(resolvers))
	for s := range resolvers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Resolve dispatches to the appropriate resolver based on URI scheme.
func Resolve(ctx context.Context, reference string) (string, error) {
	scheme := parseScheme(reference)
	if scheme == "" {
		return "", &InvalidReferenceError{Reference: reference, Reason: "missing scheme"}
	}

	mu.RLock()
	r, ok := resolvers[scheme]
	mu.RUnlock()

	if !ok {
		return "", &UnsupportedSchemeError{Scheme: scheme, Known: Schemes()}
	}

	v, err := r.Resolve(ctx, reference)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", &NotFoundError{Reference: reference, Backend: scheme}
	}
	return v, nil
}

// IsReference reports whether s looks like a reference to a registered backend.
func IsReference(s string) bool {
	scheme := parseScheme(s)
	if scheme == "" {
		return false
	}
	mu.RLock()
	defer mu.RUnlock()
	_, ok := resolvers[scheme]
	return ok
}

// Expand resolves s when it is a reference and returns it unchanged otherwise.
func Expand(ctx context.Context, s string) (string, error) {
	if !IsReference(s) {
		return s, nil
	}
	return Resolve(ctx, s)
}

// parseScheme extracts the scheme from a URI (e.g., "env" from "env://NAME").
func parseScheme(ref string) string {
	idx := strings.Index(ref, "://")
	if idx < 1 {
		return ""
	}
	return ref[:idx]
}

// clearRegistry removes all registered resolvers. For testing only.
func clearRegistry() {
	mu.Lock()
	defer mu.Unlock()
	resolvers = make(map[string]Resolver)
}
