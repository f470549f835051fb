// internal/component/registry.go
//
// Component registry (cycle-free).
//
// Each concrete component lives under components/<name> and calls
// component.Register() in an init() function with a Factory.  The web
// router builds every component from one shared Deps value and lets each
// add its routes to the root router.  Factories keep per-router state out
// of package globals, so tests may build as many routers as they like.

package component

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Component contract.  Routes adds page and API endpoints to r, e.g.
//
//	r.Get("/login", c.getLogin)
//	r.Route("/api", func(api chi.Router) { ... })
type Component interface {
	Name() string
	Routes(r chi.Router)
}

// Factory builds a Component from shared dependencies.
type Factory func(Deps) (Component, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register is invoked from component init() functions.  Registering the same
// name twice panics.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[name]; dup {
		panic("component: duplicate registration of " + name)
	}
	registry[name] = f
}

// Build constructs every registered component, sorted by name so route
// registration is deterministic.
func Build(d Deps) ([]Component, error) {
	mu.RLock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	mu.RUnlock()
	sort.Strings(names)

	out := make([]Component, 0, len(names))
	for _, n := range names {
		mu.RLock()
		f := registry[n]
		mu.RUnlock()
		c, err := f(d)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", n, err)
		}
		out = append(out, c)
	}
	return out, nil
}
