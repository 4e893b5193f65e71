package source

import "sync"

// Registry holds the registered lookup sources keyed by name.
type Registry struct {
	mu      sync.RWMutex
	sources map[Name]Source
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[Name]Source),
	}
}

// Register adds a source to the registry.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Name()] = s
}

// Get returns a source by name, or nil if not registered.
func (r *Registry) Get(name Name) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[name]
}

// All returns the registered deterministic sources in invocation order.
func (r *Registry) All() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Source
	for _, name := range AllNames() {
		if s, ok := r.sources[name]; ok {
			result = append(result, s)
		}
	}
	return result
}
