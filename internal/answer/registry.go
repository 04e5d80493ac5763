package answer

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Lookup finds the explanations recorded for a fact key.
type Lookup interface {
	Explanations(ctx context.Context, key string) ([]Explanation, error)
}

// Sink receives explanations as they are recorded, typically to persist
// them.
type Sink interface {
	WriteExplanation(ctx context.Context, key string, e Explanation) error
}

// Registry is an in-memory, concurrency-safe index of explanations by
// fact key. Recording the same explanation twice is a no-op.
type Registry struct {
	mu    sync.RWMutex
	byKey map[string][]Explanation
	ids   map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey: make(map[string][]Explanation),
		ids:   make(map[string]bool),
	}
}

// Record stores e under key. It reports whether e was new for the key.
func (r *Registry) Record(key string, e Explanation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := key + "/" + e.ID
	if r.ids[id] {
		return false
	}
	r.ids[id] = true
	r.byKey[key] = append(r.byKey[key], e)
	return true
}

// Get returns the explanations for key in recording order.
func (r *Registry) Get(key string) []Explanation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.byKey[key])
}

// Explanations implements Lookup.
func (r *Registry) Explanations(_ context.Context, key string) ([]Explanation, error) {
	return r.Get(key), nil
}

// Keys returns every fact key with at least one explanation, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, strings.Compare)
	return keys
}

// Len returns the number of recorded explanations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}
