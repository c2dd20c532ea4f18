package adapters

import (
	"sync"

	"credbroker/internal/domain"
)

// Registry maps vault ids to retrieval adapters. The broker consults
// it before falling back to the local encrypted store.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]domain.RetrievalAdapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]domain.RetrievalAdapter)}
}

func (r *Registry) Register(vaultID string, adapter domain.RetrievalAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[vaultID] = adapter
}

func (r *Registry) Lookup(vaultID string) (domain.RetrievalAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[vaultID]
	return adapter, ok
}

func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, adapter := range r.adapters {
		if err := adapter.Cleanup(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
