package backend

import "sync"

// ConditionHook returns an extra row-visibility predicate for a doctype
// and user, or empty for no restriction. Hooks must be pure: same inputs,
// same fragment.
type ConditionHook func(doctype, user string) string

// HookRegistry holds the ordered permission-query hooks per doctype.
// Hooks are registered at startup, not discovered at runtime.
type HookRegistry struct {
	mu    sync.RWMutex
	hooks map[string][]ConditionHook
}

// NewHookRegistry returns an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[string][]ConditionHook)}
}

// Register appends a hook for the doctype. Hooks run in registration
// order and their fragments are AND-ed together.
func (r *HookRegistry) Register(doctype string, hook ConditionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[doctype] = append(r.hooks[doctype], hook)
}

// Conditions evaluates all hooks for the doctype and returns the
// non-empty fragments in order.
func (r *HookRegistry) Conditions(doctype, user string) []string {
	r.mu.RLock()
	hooks := r.hooks[doctype]
	r.mu.RUnlock()

	var out []string
	for _, hook := range hooks {
		if c := hook(doctype, user); c != "" {
			out = append(out, c)
		}
	}
	return out
}
