package jobs

import (
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/leapbase/pkg/core"
)

// Default per-queue timeouts. Operator-defined queues come from
// configuration with their own timeouts.
const (
	DefaultTimeout     = 300 * time.Second
	LongQueueTimeout   = 1500 * time.Second
	DefaultQueue       = "default"
	ShortQueue         = "short"
	LongQueue          = "long"
	queueNameSeparator = ":"
)

// Registry maps logical queue names to tenant-namespaced physical
// queue identifiers and validates the queue set.
type Registry struct {
	namespace string
	timeouts  map[string]time.Duration
}

// NewRegistry builds the queue registry for one tenant namespace,
// merging the fixed queues with operator-defined custom queues.
func NewRegistry(namespace string, custom map[string]time.Duration) *Registry {
	timeouts := map[string]time.Duration{
		DefaultQueue: DefaultTimeout,
		ShortQueue:   DefaultTimeout,
		LongQueue:    LongQueueTimeout,
	}
	for name, timeout := range custom {
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		timeouts[name] = timeout
	}
	return &Registry{namespace: namespace, timeouts: timeouts}
}

// Validate rejects unrecognized queue names with the enumerated choices.
func (r *Registry) Validate(queue string) error {
	if _, ok := r.timeouts[queue]; !ok {
		return core.NewDataError("queue should be one of %s", strings.Join(r.List(), ", "))
	}
	return nil
}

// Timeout returns the configured timeout for a queue, or the default
// for unknown names.
func (r *Registry) Timeout(queue string) time.Duration {
	if t, ok := r.timeouts[queue]; ok {
		return t
	}
	return DefaultTimeout
}

// Qualified returns the tenant-namespaced physical queue name.
func (r *Registry) Qualified(queue string) string {
	return r.namespace + queueNameSeparator + queue
}

// Logical strips the namespace from a physical queue name. The second
// return is false when the queue belongs to another tenant.
func (r *Registry) Logical(physical string) (string, bool) {
	prefix := r.namespace + queueNameSeparator
	if !strings.HasPrefix(physical, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(physical, prefix)
	_, ok := r.timeouts[name]
	return name, ok
}

// List returns all recognized logical queue names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.timeouts))
	for name := range r.timeouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// QualifiedList returns all physical queue names, sorted by logical
// name.
func (r *Registry) QualifiedList() []string {
	logical := r.List()
	out := make([]string, len(logical))
	for i, name := range logical {
		out[i] = r.Qualified(name)
	}
	return out
}
