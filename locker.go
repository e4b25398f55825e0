package uniq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Locker implements the unique-job protocol on top of a Store. Producers
// call BeforeEnqueue, workers wrap execution in AroundExecute, and queues
// call AfterDequeue when a job is removed without running.
//
// A Locker holds no in-process lock state; every decision is made against
// the store, so any number of Lockers in any number of processes may share
// one store.
type Locker struct {
	store   Store
	types   *Registry
	workers WorkerRegistry
	logger  *slog.Logger
	base    *slog.Logger // logger before the component attribute
	metrics *Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// NewLocker creates a Locker. types may be nil, in which case an empty
// registry is created and job types must be registered through Types().
func NewLocker(store Store, types *Registry, workers WorkerRegistry, opts ...LockerOption) (*Locker, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	if workers == nil {
		return nil, ErrNoWorkerRegistry
	}
	if types == nil {
		types = NewRegistry()
	}
	l := &Locker{
		store:   store,
		types:   types,
		workers: workers,
		logger:  slog.Default(),
		tracer:  defaultTracer(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.base = l.logger
	l.logger = l.logger.With("component", "locker")
	return l, nil
}

// Types returns the job type registry.
func (l *Locker) Types() *Registry {
	return l.types
}

// Store returns the backing store.
func (l *Locker) Store() Store {
	return l.store
}

func (l *Locker) lookup(jobType string) (*JobType, error) {
	jt, ok := l.types.Lookup(jobType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}
	return jt, nil
}

// LockKey returns the lock key for a registered job type.
func (l *Locker) LockKey(jobType string, args []any) (string, error) {
	jt, err := l.lookup(jobType)
	if err != nil {
		return "", err
	}
	return jt.LockKey(args), nil
}

// BeforeEnqueue tries to take the lock for jobType with args. It first
// clears the lock if it is stale, then sets it atomically if absent and
// applies the type's TTL.
//
// true means this call now owns the lock and the job should be enqueued.
// false means an identical job is already queued or running and the enqueue
// should be dropped; that is a normal outcome, not an error.
func (l *Locker) BeforeEnqueue(ctx context.Context, jobType string, args []any) (acquired bool, err error) {
	jt, err := l.lookup(jobType)
	if err != nil {
		return false, err
	}
	lockKey := jt.LockKey(args)

	ctx, span := l.startSpan(ctx, "uniq.before_enqueue", jobType, lockKey)
	defer func() {
		span.SetAttributes(attribute.Bool("uniq.acquired", acquired))
		endSpan(span, err)
		switch {
		case err != nil:
			l.metrics.recordAcquire(jobType, resultError)
		case acquired:
			l.metrics.recordAcquire(jobType, resultAcquired)
		default:
			l.metrics.recordAcquire(jobType, resultLocked)
		}
	}()

	stale, err := l.IsStale(ctx, lockKey)
	if err != nil {
		return false, err
	}
	if stale {
		if err := l.store.Del(ctx, lockKey, RunKey(lockKey)); err != nil {
			return false, fmt.Errorf("clearing stale lock %s: %w", lockKey, err)
		}
		l.metrics.recordRelease(jobType, releaseStale)
		l.logger.Warn("cleared stale lock", "job_type", jobType, "lock", lockKey)
	}

	acquired, err = l.store.SetNX(ctx, lockKey, timestamp(l.now()))
	if err != nil {
		return false, fmt.Errorf("acquiring lock %s: %w", lockKey, err)
	}
	if !acquired {
		l.logger.Debug("lock held, rejecting duplicate", "job_type", jobType, "lock", lockKey)
		return false, nil
	}

	if jt.LockTTL > 0 {
		if err := l.store.Expire(ctx, lockKey, jt.LockTTL); err != nil {
			// A lock without TTL would outlive a crashed worker forever.
			if derr := l.store.Del(context.WithoutCancel(ctx), lockKey); derr != nil {
				err = errors.Join(err, derr)
			}
			return false, fmt.Errorf("setting ttl on lock %s: %w", lockKey, err)
		}
	}

	l.logger.Debug("lock acquired", "job_type", jobType, "lock", lockKey, "ttl", jt.LockTTL)
	return true, nil
}

// AroundExecute marks the job as executing and runs body. Both the
// execution marker and the lock are deleted however body exits: normal
// return, returned error, context cancellation, or panic (which is re-raised
// after release). Release errors are joined to body's error.
func (l *Locker) AroundExecute(ctx context.Context, jobType string, args []any, body func(context.Context) error) (err error) {
	jt, err := l.lookup(jobType)
	if err != nil {
		return err
	}
	lockKey := jt.LockKey(args)
	runKey := RunKey(lockKey)

	ctx, span := l.startSpan(ctx, "uniq.around_execute", jobType, lockKey)
	defer func() { endSpan(span, err) }()

	if err := l.store.Set(ctx, runKey, timestamp(l.now())); err != nil {
		return fmt.Errorf("marking execution %s: %w", runKey, err)
	}

	start := time.Now()
	finished := false
	defer func() {
		status := "ok"
		switch {
		case !finished:
			status = "panic"
		case err != nil:
			status = "error"
		}
		l.metrics.recordExecution(jobType, status, time.Since(start))

		if rerr := l.release(context.WithoutCancel(ctx), jobType, lockKey, releaseExecute); rerr != nil {
			l.logger.Error("releasing lock after execution failed",
				"job_type", jobType,
				"lock", lockKey,
				"error", rerr,
			)
			err = errors.Join(err, rerr)
		}
	}()

	err = body(ctx)
	finished = true
	return err
}

// AfterDequeue releases the lock of a job that was removed from the queue
// without executing. It never checks staleness and is a no-op when the keys
// are already gone.
func (l *Locker) AfterDequeue(ctx context.Context, jobType string, args []any) (err error) {
	jt, err := l.lookup(jobType)
	if err != nil {
		return err
	}
	lockKey := jt.LockKey(args)

	ctx, span := l.startSpan(ctx, "uniq.after_dequeue", jobType, lockKey)
	defer func() { endSpan(span, err) }()

	return l.release(ctx, jobType, lockKey, releaseDequeue)
}

// release deletes the execution marker, then the lock.
func (l *Locker) release(ctx context.Context, jobType, lockKey, path string) error {
	if err := l.store.Del(ctx, RunKey(lockKey), lockKey); err != nil {
		return fmt.Errorf("releasing lock %s: %w", lockKey, err)
	}
	l.metrics.recordRelease(jobType, path)
	return nil
}
