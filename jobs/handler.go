package jobs

import (
	"context"
	"fmt"
	"sync"
)

// Handler executes one job kind. Implementations decode their own payload
// from job.Payload and set job.Result on success. Handlers must honor
// context cancellation during long work.
type Handler interface {
	Execute(ctx context.Context, job *Job) error
	Name() string
}

// Registry routes jobs to handlers by name. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under its name. Panics on duplicate registration;
// that is a wiring bug, not a runtime condition.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := h.Name()
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("handler already registered: %s", name))
	}
	r.handlers[name] = h
}

// Get returns the handler for name, or nil.
func (r *Registry) Get(name string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[name]
}

// Has reports whether a handler is registered under name.
func (r *Registry) Has(name string) bool {
	return r.Get(name) != nil
}
