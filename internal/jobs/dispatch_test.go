package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBroker struct {
	queues     map[string][]*Descriptor
	enqueueErr error
	stops      map[string]bool
}

func newMemBroker() *memBroker {
	return &memBroker{queues: make(map[string][]*Descriptor), stops: make(map[string]bool)}
}

func (b *memBroker) Enqueue(ctx context.Context, queue string, d *Descriptor, atFront bool) error {
	if b.enqueueErr != nil {
		return b.enqueueErr
	}
	if atFront {
		b.queues[queue] = append([]*Descriptor{d}, b.queues[queue]...)
	} else {
		b.queues[queue] = append(b.queues[queue], d)
	}
	return nil
}

func (b *memBroker) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*Descriptor, error) {
	for _, q := range queues {
		if len(b.queues[q]) > 0 {
			d := b.queues[q][0]
			b.queues[q] = b.queues[q][1:]
			return d, nil
		}
	}
	return nil, nil
}

func (b *memBroker) Jobs(ctx context.Context, queue string) ([]*Descriptor, error) {
	return b.queues[queue], nil
}

func (b *memBroker) RequestStop(ctx context.Context, jobID string) error {
	b.stops[jobID] = true
	return nil
}

func (b *memBroker) StopRequested(ctx context.Context, jobID string) (bool, error) {
	return b.stops[jobID], nil
}

func (b *memBroker) Close() error { return nil }

func newTestDispatcher(t *testing.T, broker Broker) (*Dispatcher, *HandlerRegistry) {
	t.Helper()
	handlers := NewHandlerRegistry()
	require.NoError(t, handlers.Register("send_email", func(ctx context.Context, job *Job) (any, error) {
		return "sent", nil
	}))
	registry := NewRegistry("site1.example", nil)
	return NewDispatcher(broker, registry, handlers, "site1.example", "alice@example.com", nil), handlers
}

func TestEnqueue_QueuesDescriptor(t *testing.T) {
	broker := newMemBroker()
	d, _ := newTestDispatcher(t, broker)

	res, err := d.Enqueue(context.Background(), Request{
		Handler: "send_email",
		Queue:   "short",
		Args:    map[string]any{"to": "bob@example.com"},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Job)
	assert.False(t, res.RanInline)

	queued := broker.queues["site1.example:short"]
	require.Len(t, queued, 1)
	job := queued[0]
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "site1.example", job.Site)
	assert.Equal(t, "alice@example.com", job.User)
	assert.Equal(t, "send_email", job.JobName)
	assert.Equal(t, DefaultTimeout, job.Timeout)
	assert.True(t, job.IsAsync)
}

func TestEnqueue_DefaultQueueAndValidation(t *testing.T) {
	broker := newMemBroker()
	d, _ := newTestDispatcher(t, broker)

	_, err := d.Enqueue(context.Background(), Request{Handler: "send_email"})
	require.NoError(t, err)
	assert.Len(t, broker.queues["site1.example:default"], 1)

	_, err = d.Enqueue(context.Background(), Request{Handler: "send_email", Queue: "turbo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue should be one of")
}

func TestEnqueue_UnknownHandlerRejected(t *testing.T) {
	d, _ := newTestDispatcher(t, newMemBroker())
	_, err := d.Enqueue(context.Background(), Request{Handler: "ghost"})
	require.Error(t, err)
}

func TestEnqueue_AtFront(t *testing.T) {
	broker := newMemBroker()
	d, _ := newTestDispatcher(t, broker)

	_, err := d.Enqueue(context.Background(), Request{Handler: "send_email", JobName: "first"})
	require.NoError(t, err)
	_, err = d.Enqueue(context.Background(), Request{Handler: "send_email", JobName: "urgent", AtFront: true})
	require.NoError(t, err)

	queued := broker.queues["site1.example:default"]
	require.Len(t, queued, 2)
	assert.Equal(t, "urgent", queued[0].JobName)
}

func TestEnqueue_NowRunsInline(t *testing.T) {
	broker := newMemBroker()
	d, _ := newTestDispatcher(t, broker)

	res, err := d.Enqueue(context.Background(), Request{Handler: "send_email", Now: true})
	require.NoError(t, err)
	assert.True(t, res.RanInline)
	assert.Equal(t, "sent", res.Value)
	assert.Empty(t, broker.queues)
}

func TestEnqueue_BrokerDownFallsBackToInline(t *testing.T) {
	broker := newMemBroker()
	broker.enqueueErr = errors.New("connection refused")
	d, _ := newTestDispatcher(t, broker)

	res, err := d.Enqueue(context.Background(), Request{Handler: "send_email"})
	require.NoError(t, err)
	assert.True(t, res.RanInline)
	assert.Equal(t, "sent", res.Value)
}

func TestEnqueue_InlineErrorPropagates(t *testing.T) {
	broker := newMemBroker()
	d, handlers := newTestDispatcher(t, broker)
	boom := errors.New("smtp down")
	require.NoError(t, handlers.Register("failing", func(ctx context.Context, job *Job) (any, error) {
		return nil, boom
	}))

	_, err := d.Enqueue(context.Background(), Request{Handler: "failing", Sync: true})
	require.ErrorIs(t, err, boom)
}

func TestEnqueue_AfterCommitBuffersUntilFlush(t *testing.T) {
	broker := newMemBroker()
	d, _ := newTestDispatcher(t, broker)

	res, err := d.Enqueue(context.Background(), Request{Handler: "send_email", AfterCommit: true})
	require.NoError(t, err)
	assert.True(t, res.Deferred)
	assert.Empty(t, broker.queues)

	require.NoError(t, d.FlushAfterCommit(context.Background()))
	assert.Len(t, broker.queues["site1.example:default"], 1)

	// flushing again is a no-op
	require.NoError(t, d.FlushAfterCommit(context.Background()))
	assert.Len(t, broker.queues["site1.example:default"], 1)
}

func TestEnqueue_DiscardAfterCommit(t *testing.T) {
	broker := newMemBroker()
	d, _ := newTestDispatcher(t, broker)

	_, err := d.Enqueue(context.Background(), Request{Handler: "send_email", AfterCommit: true})
	require.NoError(t, err)
	d.DiscardAfterCommit()

	require.NoError(t, d.FlushAfterCommit(context.Background()))
	assert.Empty(t, broker.queues)
}

func TestEnqueueDoc(t *testing.T) {
	broker := newMemBroker()
	d, handlers := newTestDispatcher(t, broker)
	require.NoError(t, handlers.Register(DocMethodHandler, func(ctx context.Context, job *Job) (any, error) {
		return nil, nil
	}))

	_, err := d.EnqueueDoc(context.Background(), "Sales Order", "SO-0001", "submit", Request{Queue: "long"})
	require.NoError(t, err)

	queued := broker.queues["site1.example:long"]
	require.Len(t, queued, 1)
	assert.Equal(t, DocMethodHandler, queued[0].Handler)
	assert.Equal(t, "Sales Order.SO-0001.submit", queued[0].JobName)
	assert.Equal(t, "Sales Order", queued[0].Args["doctype"])
	assert.Equal(t, "submit", queued[0].Args["method"])
	assert.Equal(t, LongQueueTimeout, queued[0].Timeout)
}

func TestListJobsAndIsJobQueued(t *testing.T) {
	broker := newMemBroker()
	d, _ := newTestDispatcher(t, broker)

	_, err := d.Enqueue(context.Background(), Request{Handler: "send_email", JobName: "digest"})
	require.NoError(t, err)
	_, err = d.Enqueue(context.Background(), Request{Handler: "send_email", JobName: "cleanup", Queue: "long"})
	require.NoError(t, err)

	all, err := d.ListJobs(context.Background(), "", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"digest", "cleanup"}, all["site1.example"])

	longOnly, err := d.ListJobs(context.Background(), "site1.example", "long")
	require.NoError(t, err)
	assert.Equal(t, []string{"cleanup"}, longOnly["site1.example"])

	queued, err := d.IsJobQueued(context.Background(), "digest")
	require.NoError(t, err)
	assert.True(t, queued)

	queued, err = d.IsJobQueued(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, queued)
}
