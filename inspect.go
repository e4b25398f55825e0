package uniq

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// LockState is the lifecycle state of a lock key.
type LockState string

// Lock states reported by Inspect.
const (
	StateFree    LockState = "free"
	StateQueued  LockState = "queued"
	StateRunning LockState = "running"
	StateStale   LockState = "stale"
)

// LockInfo describes a lock as currently seen in the store.
type LockInfo struct {
	Key       string
	RunKey    string
	JobType   string // empty when the key matches no registered type
	State     LockState
	LockedAt  time.Time
	RunningAt time.Time
}

// Inspect reports the state of lockKey. It never modifies the store.
func (l *Locker) Inspect(ctx context.Context, lockKey string) (*LockInfo, error) {
	info, err := l.inspect(ctx, lockKey)
	if err != nil {
		return nil, err
	}
	if err := l.markStale(ctx, []*LockInfo{info}); err != nil {
		return nil, err
	}
	return info, nil
}

// inspect reads the lock and its marker. A lock with both keys is reported
// as running until markStale checks it against a worker snapshot.
func (l *Locker) inspect(ctx context.Context, lockKey string) (*LockInfo, error) {
	info := &LockInfo{
		Key:    lockKey,
		RunKey: RunKey(lockKey),
		State:  StateFree,
	}
	if jt, ok := l.types.resolveLockKey(lockKey); ok {
		info.JobType = jt.Name
	}

	locked, ok, err := l.store.Get(ctx, lockKey)
	if err != nil {
		return nil, fmt.Errorf("reading lock %s: %w", lockKey, err)
	}
	if !ok {
		return info, nil
	}
	info.LockedAt = parseTimestamp(locked)
	info.State = StateQueued

	running, ok, err := l.store.Get(ctx, info.RunKey)
	if err != nil {
		return nil, fmt.Errorf("reading execution marker %s: %w", info.RunKey, err)
	}
	if !ok {
		return info, nil
	}
	info.RunningAt = parseTimestamp(running)
	info.State = StateRunning
	return info, nil
}

// markStale downgrades running entries whose job is absent from a worker
// snapshot taken after the entries were read.
func (l *Locker) markStale(ctx context.Context, infos []*LockInfo) error {
	if !slices.ContainsFunc(infos, func(info *LockInfo) bool { return info.State == StateRunning }) {
		return nil
	}
	live, err := l.liveRunKeys(ctx)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if info.State != StateRunning {
			continue
		}
		if _, ok := live[info.RunKey]; !ok {
			info.State = StateStale
		}
	}
	return nil
}

// List inspects every lock in the store. The store must implement Scanner.
func (l *Locker) List(ctx context.Context) ([]*LockInfo, error) {
	scanner, ok := l.store.(Scanner)
	if !ok {
		return nil, ErrNoScanner
	}
	keys, err := scanner.Keys(ctx, lockNamePrefix+":")
	if err != nil {
		return nil, fmt.Errorf("listing locks: %w", err)
	}
	infos := make([]*LockInfo, 0, len(keys))
	for _, key := range keys {
		info, err := l.inspect(ctx, key)
		if err != nil {
			return nil, err
		}
		if info.State != StateFree {
			infos = append(infos, info)
		}
	}
	if err := l.markStale(ctx, infos); err != nil {
		return nil, err
	}
	return infos, nil
}
