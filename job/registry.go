package job

import (
	"fmt"
	"sync"

	"github.com/carebridge/scheduler"
)

// Registry maps job types to their handlers. Handlers are resolved at
// startup so that an unknown type is a configuration error surfaced per
// job at dispatch time, never a batch-wide failure.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Type]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[Type]Handler),
	}
}

// Register adds a handler for its job type. Registering a second handler
// for the same type is a configuration defect and returns an error.
func (r *Registry) Register(h Handler) error {
	t := h.Type()
	if !t.Valid() {
		return fmt.Errorf("register handler for type %q: %w", t, scheduler.ErrUnknownJobType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("register handler for type %q: %w", t, scheduler.ErrDuplicateHandler)
	}
	r.handlers[t] = h
	return nil
}

// Get returns the handler for the given job type.
// Returns false if no handler is registered.
func (r *Registry) Get(t Type) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	return h, ok
}

// Types returns all registered job types.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]Type, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
