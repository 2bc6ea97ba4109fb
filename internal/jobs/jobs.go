// Package jobs provides the background-job layer: a dispatcher that
// enqueues named operations onto tenant-namespaced broker queues, and an
// executor that runs them on a worker with per-job sessions, bounded
// retries on transient storage conflicts, and durable failure logging.
package jobs

import (
	"context"
	"time"
)

// Descriptor is the serialized form of one dispatched job. It is
// created by the dispatcher, carried through the queue, and consumed
// exactly once by the executor (unless retried). The attempt count is
// execution-local and deliberately not part of the descriptor.
type Descriptor struct {
	ID      string `json:"id"`
	Site    string `json:"site"`
	User    string `json:"user,omitempty"`
	Handler string `json:"handler"`
	JobName string `json:"job_name"`
	Event   string `json:"event,omitempty"`
	// Queue is the logical queue name the job was dispatched to.
	Queue      string         `json:"queue"`
	Timeout    time.Duration  `json:"timeout"`
	IsAsync    bool           `json:"is_async"`
	Args       map[string]any `json:"args,omitempty"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// Job is the executor-side view of a running job: the descriptor plus
// the per-attempt session and the zero-based attempt number.
type Job struct {
	*Descriptor
	Session Session
	Attempt int
}

// Session is one per-job datastore connection scoped to the job's
// tenant. The executor commits on success, rolls back on failure, and
// always releases locks and closes it, whatever the outcome.
type Session interface {
	Commit() error
	Rollback() error
	// ReleaseLocks frees any file or document locks the job body took
	// and did not release itself.
	ReleaseLocks()
	Close() error
}

// SessionFactory opens sessions. Implemented by the host environment;
// the job layer never talks to the datastore directly.
type SessionFactory interface {
	Open(ctx context.Context, site, user string) (Session, error)
}

// FailureLog durably records terminal job failures for operator
// inspection, independent of whether the caller is still listening.
type FailureLog interface {
	Record(title, detail string) error
}
