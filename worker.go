package uniq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Worker runs jobs under a Locker on behalf of one worker process and keeps
// that process's entry in the worker registry current, so that its running
// jobs are never mistaken for stale ones.
type Worker struct {
	id        string
	locker    *Locker
	publisher WorkerPublisher
	interval  time.Duration
	logger    *slog.Logger

	// mu is held across each Publish so a heartbeat never rewrites a job
	// that Perform has already cleared.
	mu      sync.Mutex
	current *JobDescriptor
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerID overrides the generated worker ID.
func WithWorkerID(id string) WorkerOption {
	return func(w *Worker) {
		if id != "" {
			w.id = id
		}
	}
}

// WithHeartbeatInterval sets how often Run refreshes the registry entry.
func WithHeartbeatInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWorkerLogger sets the worker logger.
func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = l }
}

// NewWorker creates a Worker publishing to publisher. The publisher must be
// the write side of the registry the locker reads.
func NewWorker(locker *Locker, publisher WorkerPublisher, opts ...WorkerOption) *Worker {
	w := &Worker{
		id:        NewWorkerID(),
		locker:    locker,
		publisher: publisher,
		interval:  defaultHeartbeatInterval,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "worker", "worker", w.id)
	return w
}

// ID returns the worker's registry identifier.
func (w *Worker) ID() string {
	return w.id
}

// Perform publishes the job as this worker's current job, then runs body
// through Locker.AroundExecute. The registry entry is cleared after the lock
// is released, so the execution marker is never visible without it.
func (w *Worker) Perform(ctx context.Context, jobType string, args []any, body func(context.Context) error) error {
	job := &JobDescriptor{Type: jobType, Args: args}

	if err := w.publish(ctx, job); err != nil {
		return fmt.Errorf("publishing current job: %w", err)
	}

	defer func() {
		if err := w.publish(context.WithoutCancel(ctx), nil); err != nil {
			w.logger.Warn("clearing current job failed", "job_type", jobType, "error", err)
		}
	}()

	return w.locker.AroundExecute(ctx, jobType, args, body)
}

// publish records job as the current job and writes it to the registry. On
// failure the worker is left idle.
func (w *Worker) publish(ctx context.Context, job *JobDescriptor) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = job
	if err := w.publisher.Publish(ctx, w.id, job); err != nil {
		w.current = nil
		return err
	}
	return nil
}

// Run refreshes the registry entry every heartbeat interval until ctx is
// cancelled, then removes the entry.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Debug("heartbeat started", "interval", w.interval)
	defer w.logger.Debug("heartbeat stopped")

	w.beat(ctx)
	for {
		select {
		case <-ctx.Done():
			if err := w.publisher.Remove(context.WithoutCancel(ctx), w.id); err != nil {
				w.logger.Warn("removing worker from registry failed", "error", err)
			}
			return
		case <-ticker.C:
			w.beat(ctx)
		}
	}
}

func (w *Worker) beat(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.publisher.Publish(ctx, w.id, w.current); err != nil {
		if ctx.Err() == nil {
			w.logger.Error("heartbeat update failed", "error", err)
		}
	}
}
