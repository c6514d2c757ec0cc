package secrets

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type mockResolver struct {
	scheme string
	values map[string]string
}

func (m *mockResolver) Scheme() string {
	return m.scheme
}

func (m *mockResolver) Resolve(ctx context.Context, ref string) (string, error) {
	if v, ok := m.values[ref]; ok {
		return v, nil
	}
	return "", &NotFoundError{Reference: ref}
}

// withTestRegistry runs fn against an empty registry and restores the
// original resolvers afterwards.
func withTestRegistry(fn func()) {
	mu.Lock()
	saved := resolvers
	mu.Unlock()
	clearRegistry()
	defer func() {
		mu.Lock()
		resolvers = saved
		mu.Unlock()
	}()
	fn()
}

func TestResolve_DispatchesToCorrectResolver(t *testing.T) {
	withTestRegistry(func() {
		Register(&mockResolver{
			scheme: "mock",
			values: map[string]string{"mock://vault/ankr": "secret-value"},
		})

		val, err := Resolve(context.Background(), "mock://vault/ankr")
		if err != nil {
			t.Fatal(err)
		}
		if val != "secret-value" {
			t.Errorf("expected 'secret-value', got %q", val)
		}
	})
}

func TestResolve_UnsupportedScheme(t *testing.T) {
	withTestRegistry(func() {
		Register(&mockResolver{scheme: "zeta"})
		Register(&mockResolver{scheme: "alpha"})

		_, err := Resolve(context.Background(), "unknown://vault/item")
		var unsupported *UnsupportedSchemeError
		if !errors.As(err, &unsupported) {
			t.Fatalf("expected UnsupportedSchemeError, got %T", err)
		}
		if got := strings.Join(unsupported.Known, ","); got != "alpha,zeta" {
			t.Errorf("Known = %q, want sorted registered schemes", got)
		}
		if !strings.Contains(err.Error(), "use one of: alpha, zeta") {
			t.Errorf("error %q does not list the registered schemes", err)
		}
	})
}

func TestSchemes_Builtin(t *testing.T) {
	if got := strings.Join(Schemes(), ","); got != "awssm,env" {
		t.Errorf("Schemes() = %q, want awssm,env", got)
	}
}

func TestResolve_InvalidReference(t *testing.T) {
	_, err := Resolve(context.Background(), "no-scheme-here")
	var invalid *InvalidReferenceError
	if !errors.As(err, &invalid) {
		t.Errorf("expected InvalidReferenceError, got %T", err)
	}
}

func TestResolve_EmptyValueIsNotFound(t *testing.T) {
	withTestRegistry(func() {
		Register(&mockResolver{scheme: "mock", values: map[string]string{"mock://empty": ""}})

		_, err := Resolve(context.Background(), "mock://empty")
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})
}

func TestExpand(t *testing.T) {
	withTestRegistry(func() {
		Register(&mockResolver{scheme: "mock", values: map[string]string{"mock://k": "v"}})

		tests := []struct {
			in, want string
		}{
			{"mock://k", "v"},
			{"plain-api-key", "plain-api-key"},
			{"https://rpc.ankr.com/multichain", "https://rpc.ankr.com/multichain"},
			{"", ""},
		}
		for _, tt := range tests {
			got, err := Expand(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("Expand(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
			}
		}
	})
}

func TestEnvResolver(t *testing.T) {
	r := &EnvResolver{LookupEnv: func(name string) (string, bool) {
		if name == "ANKR_API_KEY" {
			return "abc123", true
		}
		return "", false
	}}

	v, err := r.Resolve(context.Background(), "env://ANKR_API_KEY")
	if err != nil {
		t.Fatal(err)
	}
	if v != "abc123" {
		t.Errorf("got %q", v)
	}

	_, err = r.Resolve(context.Background(), "env://MISSING")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %T", err)
	}

	_, err = r.Resolve(context.Background(), "env://")
	var invalid *InvalidReferenceError
	if !errors.As(err, &invalid) {
		t.Errorf("expected InvalidReferenceError, got %T", err)
	}
}

func TestEnvResolver_Registered(t *testing.T) {
	t.Setenv("OPENSIG_TEST_SECRET", "from-env")
	v, err := Resolve(context.Background(), "env://OPENSIG_TEST_SECRET")
	if err != nil {
		t.Fatal(err)
	}
	if v != "from-env" {
		t.Errorf("got %q", v)
	}
}
