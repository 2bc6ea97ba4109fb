package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapbase/pkg/core"
)

// MaxAttempts is the retry ceiling for transient storage conflicts.
const MaxAttempts = 5

// Executor runs dispatched jobs inside a worker: per-job session,
// commit/rollback, bounded retries on lock contention, durable failure
// logging, and guaranteed resource cleanup.
type Executor struct {
	handlers *HandlerRegistry
	sessions SessionFactory
	failures FailureLog
	logger   *slog.Logger

	maxAttempts int
	sleep       func(time.Duration)
}

// NewExecutor creates an executor. A nil logger discards output.
func NewExecutor(handlers *HandlerRegistry, sessions SessionFactory, failures FailureLog, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{
		handlers:    handlers,
		sessions:    sessions,
		failures:    failures,
		logger:      logger,
		maxAttempts: MaxAttempts,
		sleep:       time.Sleep,
	}
}

// Execute runs one job to a terminal state. Transient conflicts
// (deadlock, lock-wait timeout, explicit retry requests) roll back and
// re-run the whole job with linear backoff, up to the attempt ceiling.
// Any other failure is rolled back, durably logged against the job's
// title, and returned so the broker marks the job failed.
//
// The retry is an explicit loop carrying attempt state; job bodies must
// be safely repeatable since side effects outside the datastore
// transaction are not undone.
func (e *Executor) Execute(ctx context.Context, d *Descriptor) error {
	handler, ok := e.handlers.Get(d.Handler)
	if !ok {
		err := fmt.Errorf("no handler registered for %q", d.Handler)
		e.recordFailure(d, err)
		return err
	}

	for attempt := 0; ; attempt++ {
		err := e.runAttempt(ctx, handler, d, attempt)
		if err == nil {
			if attempt > 0 {
				e.logger.Info("job recovered after retries", "job_id", d.ID, "job_name", d.JobName, "attempts", attempt+1)
			}
			return nil
		}

		if core.IsTransient(err) && attempt+1 < e.maxAttempts {
			wait := time.Duration(attempt+1) * time.Second
			e.logger.Warn("transient conflict, retrying job",
				"job_id", d.ID, "job_name", d.JobName, "attempt", attempt+1, "wait", wait, "error", err)
			e.sleep(wait)
			continue
		}

		e.recordFailure(d, err)
		return err
	}
}

// runAttempt performs one full attempt: fresh session, handler call,
// commit or rollback. Lock release and session teardown happen on every
// exit path.
func (e *Executor) runAttempt(ctx context.Context, handler Handler, d *Descriptor, attempt int) error {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	sess, err := e.sessions.Open(ctx, d.Site, d.User)
	if err != nil {
		return fmt.Errorf("failed to open session for site %s: %w", d.Site, err)
	}
	defer func() {
		sess.ReleaseLocks()
		_ = sess.Close()
	}()

	job := &Job{Descriptor: d, Session: sess, Attempt: attempt}
	if _, err := handler(ctx, job); err != nil {
		_ = sess.Rollback()
		return err
	}

	if err := sess.Commit(); err != nil {
		_ = sess.Rollback()
		return fmt.Errorf("failed to commit job %s: %w", d.ID, err)
	}
	return nil
}

// recordFailure writes the terminal failure to the durable log, keyed
// by the job's title. Logging failures must not mask the job error.
func (e *Executor) recordFailure(d *Descriptor, jobErr error) {
	e.logger.Error("job failed", "job_id", d.ID, "job_name", d.JobName, "handler", d.Handler, "error", jobErr)
	if e.failures == nil {
		return
	}
	title := d.JobName
	if title == "" {
		title = d.Handler
	}
	if err := e.failures.Record(title, jobErr.Error()); err != nil {
		e.logger.Error("failed to record job failure", "job_id", d.ID, "error", err)
	}
}
