package pipeline

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds compiled pipelines by name. Specs are compiled once at
// registration; lookups are cheap and safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[string]*Pipeline)}
}

// Register compiles the spec and stores the pipeline under its name.
// Re-registering a name overwrites the previous pipeline.
func (r *Registry) Register(spec RenderSpec, deps Deps) (*Pipeline, error) {
	p, err := Compile(spec, deps)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[p.Name()] = p
	return p, nil
}

// Get returns the pipeline registered under name.
func (r *Registry) Get(name string) (*Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("unknown render %q", name)
	}
	return p, nil
}

// Names lists registered render names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
