package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	uniq "github.com/dougcole/resque-uniq"
	"github.com/dougcole/resque-uniq/store/postgres"
)

// env is everything a command needs, opened from the config file.
type env struct {
	cfg         *uniq.Config
	logger      *slog.Logger
	locker      *uniq.Locker
	listWorkers func(ctx context.Context) ([]uniq.WorkerInfo, error)
	close       func()
}

// openEnv loads the config at path and connects to the configured backend.
// A non-nil reg receives the lock metrics.
func openEnv(ctx context.Context, path string, reg prometheus.Registerer) (*env, error) {
	cfg, err := uniq.LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger()
	types, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("building job type registry: %w", err)
	}

	e := &env{cfg: cfg, logger: logger}
	var (
		store   uniq.Store
		workers uniq.WorkerRegistry
	)

	switch cfg.App.Backend {
	case uniq.BackendPostgres:
		ps, err := postgres.New(ctx, cfg.Postgres.DSN, postgres.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := ps.Migrate(ctx); err != nil {
			ps.Close()
			return nil, err
		}
		pw := ps.Workers(cfg.StaleAfter())
		store, workers = ps, pw
		e.listWorkers = pw.List
		e.close = ps.Close
	default:
		rs, err := uniq.NewRedisStore(cfg.RedisOptions()...)
		if err != nil {
			return nil, err
		}
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, err
		}
		rw := uniq.NewRedisWorkerRegistry(rs,
			uniq.WithStaleAfter(cfg.StaleAfter()),
			uniq.WithRegistryLogger(logger),
		)
		store, workers = rs, rw
		e.listWorkers = rw.Workers
		e.close = func() { rs.Close() }
	}

	opts := []uniq.LockerOption{uniq.WithLogger(logger)}
	if reg != nil {
		opts = append(opts, uniq.WithMetrics(uniq.NewMetrics(reg)))
	}
	e.locker, err = uniq.NewLocker(store, types, workers, opts...)
	if err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}

// parseJobArgs decodes a JSON array of job arguments. Numbers stay
// json.Number so they fingerprint the same as in worker descriptors.
func parseJobArgs(s string) ([]any, error) {
	if s == "" {
		return []any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var args []any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("job arguments must be a JSON array: %w", err)
	}
	if args == nil {
		args = []any{}
	}
	return args, nil
}
