// Package doctor prints diagnostic sections for `opensig doctor`.
package doctor

import (
	"context"
	"fmt"
	"io"

	"github.com/majorcontext/opensig/internal/ui"
)

// Section is one block of diagnostic output.
type Section interface {
	// Name returns the section title (e.g., "Networks").
	Name() string

	// Print writes the section body. A returned error marks the section as
	// failed; the body may still have been written.
	Print(ctx context.Context, w io.Writer) error
}

// Registry holds sections in display order.
type Registry struct {
	sections []Section
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a section.
func (r *Registry) Register(s Section) {
	r.sections = append(r.sections, s)
}

// Sections returns all registered sections.
func (r *Registry) Sections() []Section {
	return r.sections
}

// Run prints every section and returns how many failed.
func (r *Registry) Run(ctx context.Context, w io.Writer) int {
	failed := 0
	for _, s := range r.sections {
		fmt.Fprintln(w, ui.Bold(s.Name()))
		if err := s.Print(ctx, w); err != nil {
			fmt.Fprintf(w, "%s %v\n", ui.FailTag(), err)
			failed++
		}
		fmt.Fprintln(w)
	}
	return failed
}
