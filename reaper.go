package uniq

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultReaperConcurrency = 8

// Reaper clears stale locks without waiting for an enqueue of the same job
// to trip over them. It shares the accepted check-and-clear race of
// BeforeEnqueue.
type Reaper struct {
	locker      *Locker
	scanner     Scanner
	logger      *slog.Logger
	concurrency int
}

// ReaperOption configures a Reaper.
type ReaperOption func(*Reaper)

// WithReaperConcurrency bounds how many locks are checked in parallel.
func WithReaperConcurrency(n int) ReaperOption {
	return func(r *Reaper) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithReaperLogger sets the reaper logger. Defaults to the logger the locker
// was configured with.
func WithReaperLogger(l *slog.Logger) ReaperOption {
	return func(r *Reaper) { r.logger = l }
}

// NewReaper creates a Reaper. The locker's store must implement Scanner.
func NewReaper(l *Locker, opts ...ReaperOption) (*Reaper, error) {
	scanner, ok := l.store.(Scanner)
	if !ok {
		return nil, ErrNoScanner
	}
	r := &Reaper{
		locker:      l,
		scanner:     scanner,
		logger:      l.base,
		concurrency: defaultReaperConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reaper")
	return r, nil
}

// Sweep clears every stale lock and returns the cleared lock keys, sorted.
// Locks carrying an execution marker are collected first and then checked
// against one worker snapshot taken after that scan.
func (r *Reaper) Sweep(ctx context.Context) ([]string, error) {
	keys, err := r.scanner.Keys(ctx, lockNamePrefix+":")
	if err != nil {
		return nil, fmt.Errorf("listing locks: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	marked, err := r.markedKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	if len(marked) == 0 {
		return nil, nil
	}
	live, err := r.locker.liveRunKeys(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		cleared []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, key := range marked {
		if _, running := live[RunKey(key)]; running {
			continue
		}
		key := key
		g.Go(func() error {
			jobType := ""
			if jt, ok := r.locker.types.resolveLockKey(key); ok {
				jobType = jt.Name
			}
			if err := r.locker.store.Del(gctx, key, RunKey(key)); err != nil {
				return fmt.Errorf("clearing stale lock %s: %w", key, err)
			}
			r.locker.metrics.recordRelease(jobType, releaseStale)
			r.logger.Warn("cleared stale lock", "job_type", jobType, "lock", key)

			mu.Lock()
			cleared = append(cleared, key)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	slices.Sort(cleared)
	return cleared, nil
}

// markedKeys returns the keys whose lock and execution marker both exist.
func (r *Reaper) markedKeys(ctx context.Context, keys []string) ([]string, error) {
	var (
		mu     sync.Mutex
		marked []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			ok, err := r.locker.markedRunning(gctx, key)
			if err != nil || !ok {
				return err
			}
			mu.Lock()
			marked = append(marked, key)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return marked, nil
}

// Run sweeps every interval until ctx is cancelled. Sweep errors are logged
// and do not stop the loop.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", interval)
	defer r.logger.Info("reaper stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleared, err := r.Sweep(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Error("sweep failed", "error", err)
				}
				continue
			}
			if len(cleared) > 0 {
				r.logger.Info("sweep cleared stale locks", "count", len(cleared))
			}
		}
	}
}
