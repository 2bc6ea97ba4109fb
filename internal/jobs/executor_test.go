package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapbase/pkg/core"
)

type recordingSession struct {
	commits   int
	rollbacks int
	releases  int
	closes    int
}

func (s *recordingSession) Commit() error   { s.commits++; return nil }
func (s *recordingSession) Rollback() error { s.rollbacks++; return nil }
func (s *recordingSession) ReleaseLocks()   { s.releases++ }
func (s *recordingSession) Close() error    { s.closes++; return nil }

type recordingFactory struct {
	session *recordingSession
	opens   int
}

func (f *recordingFactory) Open(ctx context.Context, site, user string) (Session, error) {
	f.opens++
	return f.session, nil
}

type memFailureLog struct {
	titles  []string
	details []string
}

func (l *memFailureLog) Record(title, detail string) error {
	l.titles = append(l.titles, title)
	l.details = append(l.details, detail)
	return nil
}

func newTestExecutor(handlers *HandlerRegistry, factory SessionFactory, failures FailureLog) (*Executor, *[]time.Duration) {
	e := NewExecutor(handlers, factory, failures, nil)
	var sleeps []time.Duration
	e.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return e, &sleeps
}

func descriptorFor(handler string) *Descriptor {
	return &Descriptor{
		ID:      "job-1",
		Site:    "site1.example",
		User:    "alice@example.com",
		Handler: handler,
		JobName: handler,
		Queue:   DefaultQueue,
	}
}

func TestExecute_Success(t *testing.T) {
	handlers := NewHandlerRegistry()
	calls := 0
	require.NoError(t, handlers.Register("ping", func(ctx context.Context, job *Job) (any, error) {
		calls++
		assert.Equal(t, 0, job.Attempt)
		assert.NotNil(t, job.Session)
		return "pong", nil
	}))

	sess := &recordingSession{}
	factory := &recordingFactory{session: sess}
	e, sleeps := newTestExecutor(handlers, factory, &memFailureLog{})

	require.NoError(t, e.Execute(context.Background(), descriptorFor("ping")))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, sess.commits)
	assert.Equal(t, 0, sess.rollbacks)
	assert.Equal(t, 1, sess.releases)
	assert.Equal(t, 1, sess.closes)
	assert.Empty(t, *sleeps)
}

func TestExecute_RetriesTransientThenSucceeds(t *testing.T) {
	handlers := NewHandlerRegistry()
	attempts := 0
	require.NoError(t, handlers.Register("flaky", func(ctx context.Context, job *Job) (any, error) {
		attempts++
		if attempts <= 3 {
			return nil, core.ErrDeadlocked
		}
		return nil, nil
	}))

	sess := &recordingSession{}
	factory := &recordingFactory{session: sess}
	failures := &memFailureLog{}
	e, sleeps := newTestExecutor(handlers, factory, failures)

	require.NoError(t, e.Execute(context.Background(), descriptorFor("flaky")))

	assert.Equal(t, 4, attempts)
	assert.Equal(t, 4, factory.opens, "each attempt gets a fresh session")
	assert.Equal(t, 3, sess.rollbacks)
	assert.Equal(t, 1, sess.commits)
	assert.Equal(t, 4, sess.releases)
	// linear backoff: 1s, 2s, 3s
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, *sleeps)
	assert.Empty(t, failures.titles)
}

func TestExecute_TransientExhaustsAttempts(t *testing.T) {
	handlers := NewHandlerRegistry()
	attempts := 0
	require.NoError(t, handlers.Register("stuck", func(ctx context.Context, job *Job) (any, error) {
		attempts++
		return nil, core.ErrLockWaitTimed
	}))

	sess := &recordingSession{}
	failures := &memFailureLog{}
	e, sleeps := newTestExecutor(handlers, &recordingFactory{session: sess}, failures)

	err := e.Execute(context.Background(), descriptorFor("stuck"))
	require.ErrorIs(t, err, core.ErrLockWaitTimed)

	assert.Equal(t, MaxAttempts, attempts)
	assert.Len(t, *sleeps, MaxAttempts-1)
	assert.Equal(t, MaxAttempts, sess.rollbacks)
	assert.Equal(t, 0, sess.commits)
	require.Len(t, failures.titles, 1)
	assert.Equal(t, "stuck", failures.titles[0])
}

func TestExecute_PermanentFailureNotRetried(t *testing.T) {
	handlers := NewHandlerRegistry()
	attempts := 0
	boom := errors.New("validation failed")
	require.NoError(t, handlers.Register("broken", func(ctx context.Context, job *Job) (any, error) {
		attempts++
		return nil, boom
	}))

	sess := &recordingSession{}
	failures := &memFailureLog{}
	e, sleeps := newTestExecutor(handlers, &recordingFactory{session: sess}, failures)

	err := e.Execute(context.Background(), descriptorFor("broken"))
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 1, attempts)
	assert.Empty(t, *sleeps)
	assert.Equal(t, 1, sess.rollbacks)
	require.Len(t, failures.details, 1)
	assert.Equal(t, "validation failed", failures.details[0])
}

func TestExecute_RetryErrorIsTransient(t *testing.T) {
	handlers := NewHandlerRegistry()
	attempts := 0
	require.NoError(t, handlers.Register("contended", func(ctx context.Context, job *Job) (any, error) {
		attempts++
		if attempts == 1 {
			return nil, &core.RetryError{Cause: errors.New("document modified concurrently")}
		}
		return nil, nil
	}))

	e, _ := newTestExecutor(handlers, &recordingFactory{session: &recordingSession{}}, &memFailureLog{})
	require.NoError(t, e.Execute(context.Background(), descriptorFor("contended")))
	assert.Equal(t, 2, attempts)
}

func TestExecute_UnknownHandler(t *testing.T) {
	failures := &memFailureLog{}
	e, _ := newTestExecutor(NewHandlerRegistry(), &recordingFactory{session: &recordingSession{}}, failures)

	err := e.Execute(context.Background(), descriptorFor("ghost"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler registered")
	assert.Equal(t, []string{"ghost"}, failures.titles)
}

func TestExecute_TimeoutAppliedToContext(t *testing.T) {
	handlers := NewHandlerRegistry()
	var sawDeadline bool
	require.NoError(t, handlers.Register("timed", func(ctx context.Context, job *Job) (any, error) {
		_, sawDeadline = ctx.Deadline()
		return nil, nil
	}))

	e, _ := newTestExecutor(handlers, &recordingFactory{session: &recordingSession{}}, &memFailureLog{})
	d := descriptorFor("timed")
	d.Timeout = time.Minute
	require.NoError(t, e.Execute(context.Background(), d))
	assert.True(t, sawDeadline)
}
