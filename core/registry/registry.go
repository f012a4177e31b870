// Package registry holds the global function registry that backs every
// Apply node in a formula. Functions register themselves
// from blank-imported packages at init time, following the database/sql
// driver registration pattern.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Arity bounds the number of arguments a Function accepts. Max of -1 means
// unbounded (variadic).
type Arity struct {
	Min int
	Max int
}

// Fixed returns an Arity requiring exactly n arguments.
func Fixed(n int) Arity { return Arity{Min: n, Max: n} }

// AtLeast returns an Arity requiring at least n arguments, unbounded above.
func AtLeast(n int) Arity { return Arity{Min: n, Max: -1} }

// Accepts reports whether n arguments satisfy a.
func (a Arity) Accepts(n int) bool {
	if n < a.Min {
		return false
	}
	return a.Max < 0 || n <= a.Max
}

// Stateful marks whether a function's compiled Node carries memory across
// updates (e.g. the stateful combinators like count/sample/mean/uniq/any)
// or is purely a function of its children's current values.
type Descriptor struct {
	Name     string
	Arity    Arity
	Stateful bool
	Doc      string
}

// NodeFactory builds a fresh VM node instance for one Apply site. It is
// declared as `any` here to avoid an import cycle with runtime/vm, which
// depends on this package for descriptor lookup; runtime/vm type-asserts
// it back to vm.NodeFactory at registration time.
type NodeFactory = any

type entry struct {
	desc    Descriptor
	factory NodeFactory
}

// Registry is the function registry: name -> (Descriptor, NodeFactory).
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

var global = New()

// Global returns the process-wide function registry populated by package
// init functions under runtime/registry/builtin.
func Global() *Registry { return global }

// Register adds a function under name to the global registry. It panics on
// a duplicate name, matching the database/sql convention that a driver
// registering twice under the same name is a programming error caught at
// init time, not a runtime condition.
func Register(name string, desc Descriptor, factory NodeFactory) {
	global.register(name, desc, factory)
}

// Register adds a function under name to r. It panics on a duplicate name.
func (r *Registry) Register(name string, desc Descriptor, factory NodeFactory) {
	r.register(name, desc, factory)
}

func (r *Registry) register(name string, desc Descriptor, factory NodeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		panic(fmt.Sprintf("registry: function %q registered twice", name))
	}
	desc.Name = name
	r.entries[name] = entry{desc: desc, factory: factory}
}

// Lookup returns the descriptor and factory registered under name.
func (r *Registry) Lookup(name string) (Descriptor, NodeFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Descriptor{}, nil, false
	}
	return e.desc, e.factory, true
}

// Names returns all registered function names, sorted, for use in parse
// error "did you mean" suggestions and CLI introspection.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns every registered Descriptor, sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		descs = append(descs, e.desc)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}
