package storage

import (
	"slices"
	"sync"

	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
)

// Registry maps each region to the adapter holding its data.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.Region]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[domain.Region]Adapter)}
}

// Register sets the adapter for region.
func (r *Registry) Register(region domain.Region, a Adapter) {
	if a == nil {
		panic("storage: nil adapter for region " + region.String())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[region] = a
}

// Adapter returns the adapter for region. A region without a store cannot
// hold data, so the lookup fails closed.
func (r *Registry) Adapter(region domain.Region) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[region]
	if !ok {
		return nil, dErrors.New(dErrors.CodeRegionUndetermined, "no data store configured for region "+region.String())
	}
	return a, nil
}

// Regions returns the configured regions, sorted.
func (r *Registry) Regions() []domain.Region {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Region, 0, len(r.adapters))
	for region := range r.adapters {
		out = append(out, region)
	}
	slices.Sort(out)
	return out
}
