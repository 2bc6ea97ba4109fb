package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Request describes one enqueue call.
type Request struct {
	// Handler names the registered target callable.
	Handler string
	// Queue is the logical queue name; empty means "default".
	Queue string
	// Timeout overrides the queue's configured timeout.
	Timeout time.Duration
	// JobName identifies the call for duplicate detection; defaults to
	// the handler name.
	JobName string
	// Event tags the job so related jobs can be cleared together.
	Event string
	// Now runs the target immediately in-process, bypassing the queue.
	Now bool
	// Sync opts out of async execution; like Now, the target runs
	// inline.
	Sync bool
	// AfterCommit buffers the job until the enclosing transaction
	// commits; FlushAfterCommit releases it.
	AfterCommit bool
	// AtFront puts the job at the head of the queue.
	AtFront bool
	// User is the identity the job runs as; empty means the
	// dispatcher's ambient user.
	User string
	// Args are the keyword arguments passed to the handler.
	Args map[string]any
}

// Result is the outcome of an enqueue call: either a queued (or
// deferred) job descriptor, or the direct return value of an inline
// run.
type Result struct {
	Job       *Descriptor
	Value     any
	RanInline bool
	Deferred  bool
}

// Dispatcher enqueues named operations onto tenant queues, choosing
// synchronous vs. asynchronous execution. When the broker is
// unreachable it degrades to running the target in-process so work is
// not lost.
type Dispatcher struct {
	broker   Broker
	registry *Registry
	handlers *HandlerRegistry
	site     string
	user     string
	logger   *slog.Logger

	mu      sync.Mutex
	pending []*pendingJob
}

type pendingJob struct {
	queue   string
	atFront bool
	desc    *Descriptor
}

// NewDispatcher creates a dispatcher for one tenant site and acting
// user.
func NewDispatcher(broker Broker, registry *Registry, handlers *HandlerRegistry, site, user string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		broker:   broker,
		registry: registry,
		handlers: handlers,
		site:     site,
		user:     user,
		logger:   logger,
	}
}

// Enqueue dispatches one job. Inline execution (Now or Sync) bypasses
// the queue entirely and returns the target's direct result.
func (d *Dispatcher) Enqueue(ctx context.Context, req Request) (*Result, error) {
	if req.Queue == "" {
		req.Queue = DefaultQueue
	}
	if err := d.registry.Validate(req.Queue); err != nil {
		return nil, err
	}
	if _, ok := d.handlers.Get(req.Handler); !ok {
		return nil, fmt.Errorf("no handler registered for %q", req.Handler)
	}

	desc := d.descriptor(req)

	if req.Now || req.Sync {
		return d.runInline(ctx, desc)
	}

	if req.AfterCommit {
		d.mu.Lock()
		d.pending = append(d.pending, &pendingJob{queue: req.Queue, atFront: req.AtFront, desc: desc})
		d.mu.Unlock()
		return &Result{Job: desc, Deferred: true}, nil
	}

	if err := d.broker.Enqueue(ctx, d.registry.Qualified(req.Queue), desc, req.AtFront); err != nil {
		// fail open: run the target synchronously so availability does
		// not depend on the broker
		d.logger.Warn("job broker unreachable, executing synchronously",
			"handler", req.Handler, "queue", req.Queue, "error", err)
		return d.runInline(ctx, desc)
	}

	d.logger.Debug("job queued", "job_id", desc.ID, "handler", desc.Handler, "queue", req.Queue)
	return &Result{Job: desc}, nil
}

// EnqueueDoc dispatches a method call on one document through the
// reserved document-method handler.
func (d *Dispatcher) EnqueueDoc(ctx context.Context, doctype, name, method string, req Request) (*Result, error) {
	args := map[string]any{"doctype": doctype, "name": name, "method": method}
	for k, v := range req.Args {
		args[k] = v
	}
	req.Handler = DocMethodHandler
	req.Args = args
	if req.JobName == "" {
		req.JobName = fmt.Sprintf("%s.%s.%s", doctype, name, method)
	}
	return d.Enqueue(ctx, req)
}

// FlushAfterCommit enqueues every job buffered with AfterCommit. The
// host's transaction-commit hook must call this.
func (d *Dispatcher) FlushAfterCommit(ctx context.Context) error {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	for _, p := range pending {
		if err := d.broker.Enqueue(ctx, d.registry.Qualified(p.queue), p.desc, p.atFront); err != nil {
			return fmt.Errorf("failed to flush deferred job %s: %w", p.desc.ID, err)
		}
	}
	return nil
}

// DiscardAfterCommit drops any buffered jobs. The host's rollback hook
// should call this.
func (d *Dispatcher) DiscardAfterCommit() {
	d.mu.Lock()
	d.pending = nil
	d.mu.Unlock()
}

// ListJobs returns the queued job names per site, optionally narrowed
// to one site or one logical queue.
func (d *Dispatcher) ListJobs(ctx context.Context, site, queue string) (map[string][]string, error) {
	queues := d.registry.List()
	if queue != "" {
		if err := d.registry.Validate(queue); err != nil {
			return nil, err
		}
		queues = []string{queue}
	}

	out := make(map[string][]string)
	for _, q := range queues {
		descs, err := d.broker.Jobs(ctx, d.registry.Qualified(q))
		if err != nil {
			return nil, err
		}
		for _, desc := range descs {
			if desc.Site == "" {
				d.logger.Warn("job without site on queue", "queue", q, "job_id", desc.ID)
				continue
			}
			if site != "" && desc.Site != site {
				continue
			}
			out[desc.Site] = append(out[desc.Site], desc.JobName)
		}
	}
	return out, nil
}

// IsJobQueued reports whether a job with the given name is waiting on
// any queue for this dispatcher's site.
func (d *Dispatcher) IsJobQueued(ctx context.Context, jobName string) (bool, error) {
	for _, q := range d.registry.List() {
		descs, err := d.broker.Jobs(ctx, d.registry.Qualified(q))
		if err != nil {
			return false, err
		}
		for _, desc := range descs {
			if desc.JobName == jobName && desc.Site == d.site {
				return true, nil
			}
		}
	}
	return false, nil
}

func (d *Dispatcher) descriptor(req Request) *Descriptor {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = d.registry.Timeout(req.Queue)
	}
	jobName := req.JobName
	if jobName == "" {
		jobName = req.Handler
	}
	user := req.User
	if user == "" {
		user = d.user
	}
	return &Descriptor{
		ID:         uuid.NewString(),
		Site:       d.site,
		User:       user,
		Handler:    req.Handler,
		JobName:    jobName,
		Event:      req.Event,
		Queue:      req.Queue,
		Timeout:    timeout,
		IsAsync:    !req.Sync && !req.Now,
		Args:       req.Args,
		EnqueuedAt: time.Now().UTC(),
	}
}

// runInline calls the target directly in-process with no session
// machinery; the caller's ambient transaction applies.
func (d *Dispatcher) runInline(ctx context.Context, desc *Descriptor) (*Result, error) {
	handler, _ := d.handlers.Get(desc.Handler)
	value, err := handler(ctx, &Job{Descriptor: desc})
	if err != nil {
		return nil, err
	}
	return &Result{Value: value, RanInline: true}, nil
}
