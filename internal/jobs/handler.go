package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler is a registered job target. The returned value is only
// surfaced when the job runs inline; workers discard it.
type Handler func(ctx context.Context, job *Job) (any, error)

// HandlerRegistry maps handler names to callables. Targets are
// referenced by name because descriptors travel through the broker as
// plain data.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewHandlerRegistry returns an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]Handler)}
}

// Register adds a handler under the given name. Re-registering a name
// is an error; handler sets are fixed at startup.
func (r *HandlerRegistry) Register(name string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Get looks up a handler by name.
func (r *HandlerRegistry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns all registered handler names, sorted.
func (r *HandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DocMethodHandler is the reserved handler name used by EnqueueDoc.
const DocMethodHandler = "docmethod"

// DocMethodRunner executes a named method on one document. Implemented
// by the host document layer.
type DocMethodRunner interface {
	RunDocMethod(ctx context.Context, job *Job, doctype, name, method string) (any, error)
}

// RegisterDocMethodHandler wires the document-method dispatch target.
func RegisterDocMethodHandler(registry *HandlerRegistry, runner DocMethodRunner) error {
	return registry.Register(DocMethodHandler, func(ctx context.Context, job *Job) (any, error) {
		doctype, _ := job.Args["doctype"].(string)
		name, _ := job.Args["name"].(string)
		method, _ := job.Args["method"].(string)
		if doctype == "" || method == "" {
			return nil, fmt.Errorf("docmethod job %s missing doctype or method", job.ID)
		}
		return runner.RunDocMethod(ctx, job, doctype, name, method)
	})
}
