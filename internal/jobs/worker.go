package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	dequeueTimeout    = 5 * time.Second
	stopCheckInterval = 2 * time.Second
)

// Worker pulls jobs one at a time off a set of queues and runs each
// through an Executor. Jobs are never executed concurrently within one
// worker.
type Worker struct {
	name     string
	broker   Broker
	registry *Registry
	executor *Executor
	queues   []string
	logger   *slog.Logger

	mu      sync.Mutex
	current map[string]context.CancelFunc
}

// NewWorker creates a worker listening on the given logical queues, or
// on every registered queue when queues is empty. The worker name
// embeds host and pid so it can be told apart in a fleet.
func NewWorker(broker Broker, registry *Registry, executor *Executor, queues []string, logger *slog.Logger) (*Worker, error) {
	if len(queues) == 0 {
		queues = registry.List()
	}
	for _, q := range queues {
		if err := registry.Validate(q); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	suffix := ""
	if len(queues) == 1 {
		suffix = "." + queues[0]
	}
	return &Worker{
		name:     fmt.Sprintf("%s.%s.%d%s", uuid.NewString(), hostname, os.Getpid(), suffix),
		broker:   broker,
		registry: registry,
		executor: executor,
		queues:   queues,
		logger:   logger,
		current:  make(map[string]context.CancelFunc),
	}, nil
}

// Name returns the worker's unique identity.
func (w *Worker) Name() string { return w.name }

// Run blocks dequeuing and executing jobs until ctx is cancelled. A
// second goroutine watches for stop requests against the in-flight job
// and cancels it abruptly.
func (w *Worker) Run(ctx context.Context) error {
	physical := make([]string, len(w.queues))
	for i, q := range w.queues {
		physical[i] = w.registry.Qualified(q)
	}
	w.logger.Info("worker started", "worker", w.name, "queues", w.queues)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.consume(ctx, physical) })
	g.Go(func() error { return w.watchStops(ctx) })

	err := g.Wait()
	if err == context.Canceled {
		err = nil
	}
	w.logger.Info("worker stopped", "worker", w.name)
	return err
}

func (w *Worker) consume(ctx context.Context, physical []string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		desc, err := w.broker.Dequeue(ctx, physical, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("dequeue failed", "worker", w.name, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if desc == nil {
			continue
		}
		w.runJob(ctx, desc)
	}
}

func (w *Worker) runJob(ctx context.Context, desc *Descriptor) {
	jobCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.current[desc.ID] = cancel
	w.mu.Unlock()
	defer func() {
		cancel()
		w.mu.Lock()
		delete(w.current, desc.ID)
		w.mu.Unlock()
	}()

	start := time.Now()
	if err := w.executor.Execute(jobCtx, desc); err != nil {
		w.logger.Error("job failed",
			"worker", w.name, "job_id", desc.ID, "handler", desc.Handler,
			"duration", time.Since(start), "error", err)
		return
	}
	w.logger.Info("job done",
		"worker", w.name, "job_id", desc.ID, "handler", desc.Handler,
		"duration", time.Since(start))
}

// watchStops polls the broker for stop requests against whatever job
// is currently running and cancels its context when one appears.
func (w *Worker) watchStops(ctx context.Context) error {
	ticker := time.NewTicker(stopCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		w.mu.Lock()
		ids := make([]string, 0, len(w.current))
		for id := range w.current {
			ids = append(ids, id)
		}
		w.mu.Unlock()

		for _, id := range ids {
			stop, err := w.broker.StopRequested(ctx, id)
			if err != nil || !stop {
				continue
			}
			w.mu.Lock()
			cancel, ok := w.current[id]
			w.mu.Unlock()
			if ok {
				w.logger.Warn("stop requested, cancelling job", "worker", w.name, "job_id", id)
				cancel()
			}
		}
	}
}
