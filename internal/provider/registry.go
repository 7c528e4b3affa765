package provider

import (
	"context"
	"fmt"
	"strings"
)

// Registry is an ordered collection of providers injected into the engine at
// construction. It is a plain value so tests and concurrent jobs can each
// build their own provider sets without shared global state.
type Registry struct {
	order  []string
	byName map[string]Provider
}

// NewRegistry builds a registry from the given providers, preserving order.
// Duplicate names are rejected.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{byName: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		name := strings.TrimSpace(p.Name())
		if name == "" {
			return nil, fmt.Errorf("registry: provider with empty name")
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("registry: duplicate provider %q", name)
		}
		r.byName[name] = p
		r.order = append(r.order, name)
	}
	return r, nil
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.byName[strings.TrimSpace(name)]
	return p, ok
}

// Names returns provider names in registration order.
func (r *Registry) Names() []string {
	cp := make([]string, len(r.order))
	copy(cp, r.order)
	return cp
}

// Providers returns the providers in registration order.
func (r *Registry) Providers() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Available returns the subset of providers whose availability check passes,
// along with the per-provider failure details for the ones that do not.
func (r *Registry) Available(ctx context.Context) ([]Provider, map[string]error) {
	var ready []Provider
	failed := make(map[string]error)
	for _, name := range r.order {
		p := r.byName[name]
		if err := p.Available(ctx); err != nil {
			failed[name] = err
			continue
		}
		ready = append(ready, p)
	}
	return ready, failed
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.order)
}
