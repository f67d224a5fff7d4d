// Package messages holds the open catalog of named signalling record shapes.
package messages

import (
	"slices"
	"sync"

	"github.com/dkeye/Signalling/internal/domain"
	"github.com/samber/lo"
)

// Factory returns a fresh, pointer-typed value to decode a record into.
type Factory func() domain.Message

// Registry maps message types to their typed shapes. Inbound frames always
// arrive as domain.Generic; Shape narrows them on demand.
type Registry struct {
	mu        sync.RWMutex
	factories map[domain.MessageType]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[domain.MessageType]Factory)}
}

// Register adds or replaces the factory for t.
func (r *Registry) Register(t domain.MessageType, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = f
}

func (r *Registry) Lookup(t domain.MessageType) (Factory, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[t]
	return f, ok
}

// Types lists the registered types in lexical order.
func (r *Registry) Types() []domain.MessageType {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	types := lo.Keys(r.factories)
	r.mu.RUnlock()
	slices.Sort(types)
	return types
}
