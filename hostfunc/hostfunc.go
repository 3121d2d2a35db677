package hostfunc

import (
	"context"
	"sort"
	"sync"
)

// Func is a host function callable from guest code. Arguments arrive as
// decoded JSON; the returned value is JSON encoded back to the guest.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Registry maps function names to host functions. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds fn under name, replacing any earlier function of that name.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	r.funcs[name] = fn
	r.mu.Unlock()
}

// Get returns the function registered under name. A nil Registry has none.
func (r *Registry) Get(name string) (Func, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	return fn, ok
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the first function named name, searching registries in
// order. Nil registries are skipped.
func Lookup(name string, registries ...*Registry) (Func, bool) {
	for _, r := range registries {
		if fn, ok := r.Get(name); ok {
			return fn, true
		}
	}
	return nil, false
}
