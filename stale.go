package uniq

import (
	"context"
	"fmt"
)

// IsStale reports whether the lock at lockKey was orphaned: both the lock and
// its execution marker exist, yet no worker in the current snapshot is
// executing a job with the same run key.
//
// A lock without a marker belongs to a job that is queued and waiting; it is
// never stale. Snapshot entries whose job type is not registered are
// skipped. The snapshot is only fetched when both keys exist.
func (l *Locker) IsStale(ctx context.Context, lockKey string) (bool, error) {
	marked, err := l.markedRunning(ctx, lockKey)
	if err != nil || !marked {
		return false, err
	}
	live, err := l.liveRunKeys(ctx)
	if err != nil {
		return false, err
	}
	_, running := live[RunKey(lockKey)]
	return !running, nil
}

// markedRunning reports whether both the lock and its execution marker
// exist. Callers must take the worker snapshot after this read: a worker
// publishes its job before writing the marker, so a marker seen here is
// always covered by a later snapshot.
func (l *Locker) markedRunning(ctx context.Context, lockKey string) (bool, error) {
	_, ok, err := l.store.Get(ctx, lockKey)
	if err != nil {
		return false, fmt.Errorf("reading lock %s: %w", lockKey, err)
	}
	if !ok {
		return false, nil
	}

	runKey := RunKey(lockKey)
	_, ok, err = l.store.Get(ctx, runKey)
	if err != nil {
		return false, fmt.Errorf("reading execution marker %s: %w", runKey, err)
	}
	return ok, nil
}

// liveRunKeys resolves the run key of every job in the worker snapshot.
func (l *Locker) liveRunKeys(ctx context.Context) (map[string]struct{}, error) {
	working, err := l.workers.Working(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing working jobs: %w", err)
	}
	live := make(map[string]struct{}, len(working))
	for _, job := range working {
		jt, ok := l.types.Lookup(job.Type)
		if !ok {
			l.logger.Debug("skipping working job of unknown type", "job_type", job.Type)
			continue
		}
		live[jt.RunKey(job.Args)] = struct{}{}
	}
	return live, nil
}
