package taskqueue

import (
	"sync"

	"github.com/procurement/backend/internal/domain/task"
)

// Registry maps task kinds to their handlers
type Registry struct {
	handlers map[string]task.Handler
	mu       sync.RWMutex
}

// NewRegistry creates a registry with the given handlers
func NewRegistry(handlers ...task.Handler) *Registry {
	r := &Registry{handlers: make(map[string]task.Handler, len(handlers))}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register adds a handler, replacing any handler of the same kind
func (r *Registry) Register(h task.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Kind()] = h
}

// Handler returns the handler for a kind
func (r *Registry) Handler(kind string) (task.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the registered kinds
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}
