// Package uniq keeps at most one logically identical job queued or running
// at a time across a fleet of worker processes.
//
// Two jobs are identical when they share a job type and their arguments
// canonicalize to the same fingerprint (see Canonicalize). Coordination
// happens entirely through a shared Store with an atomic set-if-absent
// primitive; a WorkerRegistry reports which jobs are executing right now so
// that locks left behind by crashed workers can be detected and cleared.
//
// The Locker exposes the three lifecycle hooks a queue integration calls:
//
//	types := uniq.NewRegistry()
//	types.Register("email.send", uniq.WithLockTTL(time.Hour))
//
//	store, _ := uniq.NewRedisStore(uniq.WithRedisAddr("localhost:6379"))
//	workers := uniq.NewRedisWorkerRegistry(store)
//	locker, _ := uniq.NewLocker(store, types, workers)
//
//	// Producer: only enqueue when the lock was acquired.
//	ok, err := locker.BeforeEnqueue(ctx, "email.send", []any{map[string]any{"user_id": 5}})
//
//	// Worker: release is guaranteed however the body exits.
//	err = locker.AroundExecute(ctx, "email.send", args, func(ctx context.Context) error {
//	    return send(ctx)
//	})
//
//	// Queue removed the job without running it.
//	err = locker.AfterDequeue(ctx, "email.send", args)
package uniq
