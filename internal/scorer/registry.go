package scorer

import (
	"fmt"
	"sync"
)

// Registry maps scorer names to their implementations.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu      sync.RWMutex
	scorers map[string]Scorer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{scorers: make(map[string]Scorer)}
}

// Register adds a scorer. Panics on duplicate name to surface
// misconfiguration early.
func (r *Registry) Register(s Scorer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.scorers[s.Name()]; exists {
		panic(fmt.Sprintf("scorer registry: duplicate name %q", s.Name()))
	}
	r.scorers[s.Name()] = s
}

// Get returns the scorer registered under name.
func (r *Registry) Get(name string) (Scorer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scorers[name]
	if !ok {
		return nil, fmt.Errorf("no scorer registered for %q", name)
	}
	return s, nil
}

// Names returns all registered scorer names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.scorers))
	for k := range r.scorers {
		out = append(out, k)
	}
	return out
}
