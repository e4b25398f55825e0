package uniq

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultHeartbeatInterval = 5 * time.Second
	defaultWorkerStaleAfter  = 30 * time.Second
)

var (
	_ WorkerRegistry  = (*RedisWorkerRegistry)(nil)
	_ WorkerPublisher = (*RedisWorkerRegistry)(nil)
)

// RedisWorkerRegistry keeps one hash per worker (worker:<id>) plus the set
// of worker IDs (workers) in Redis. Workers refresh their hash on every
// heartbeat; a worker whose heartbeat is older than StaleAfter is treated as
// dead, so a crashed worker's job no longer protects its lock.
type RedisWorkerRegistry struct {
	store      *RedisStore
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
	host       string
	pid        int
}

// RegistryOption configures a RedisWorkerRegistry.
type RegistryOption func(*RedisWorkerRegistry)

// WithStaleAfter sets how old a heartbeat may be before its worker is
// considered dead. It should be several heartbeat intervals.
func WithStaleAfter(d time.Duration) RegistryOption {
	return func(r *RedisWorkerRegistry) {
		if d > 0 {
			r.staleAfter = d
		}
	}
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *RedisWorkerRegistry) { r.logger = l }
}

// WithRegistryClock overrides the clock used for heartbeats and liveness.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *RedisWorkerRegistry) { r.now = now }
}

// NewRedisWorkerRegistry creates a registry sharing rs's connection and prefix.
func NewRedisWorkerRegistry(rs *RedisStore, opts ...RegistryOption) *RedisWorkerRegistry {
	host, _ := os.Hostname()
	r := &RedisWorkerRegistry{
		store:      rs,
		staleAfter: defaultWorkerStaleAfter,
		logger:     slog.Default(),
		now:        time.Now,
		host:       host,
		pid:        os.Getpid(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "worker_registry")
	return r
}

func (r *RedisWorkerRegistry) workerKey(id string) string {
	return r.store.Key("worker:" + id)
}

func (r *RedisWorkerRegistry) workersKey() string {
	return r.store.Key("workers")
}

// Publish implements WorkerPublisher. It doubles as the heartbeat: each call
// refreshes last_heartbeat.
func (r *RedisWorkerRegistry) Publish(ctx context.Context, workerID string, job *JobDescriptor) error {
	jobJSON := ""
	if job != nil {
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("encoding job descriptor for worker %s: %w", workerID, err)
		}
		jobJSON = string(data)
	}

	pipe := r.store.rdb.TxPipeline()
	pipe.HSet(ctx, r.workerKey(workerID),
		"id", workerID,
		"host", r.host,
		"pid", r.pid,
		"last_heartbeat", r.now().UnixNano(),
		"job", jobJSON,
	)
	pipe.SAdd(ctx, r.workersKey(), workerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publishing worker %s: %w", workerID, err)
	}
	return nil
}

// Remove implements WorkerPublisher.
func (r *RedisWorkerRegistry) Remove(ctx context.Context, workerID string) error {
	pipe := r.store.rdb.TxPipeline()
	pipe.Del(ctx, r.workerKey(workerID))
	pipe.SRem(ctx, r.workersKey(), workerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("removing worker %s: %w", workerID, err)
	}
	return nil
}

// Workers lists every registered worker, alive or not, sorted by ID.
func (r *RedisWorkerRegistry) Workers(ctx context.Context) ([]WorkerInfo, error) {
	rdb := r.store.rdb
	ids, err := rdb.SMembers(ctx, r.workersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("listing workers: %w", err)
	}
	slices.Sort(ids)

	pipe := rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.workerKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("reading workers: %w", err)
	}

	now := r.now()
	infos := make([]WorkerInfo, 0, len(ids))
	for i, id := range ids {
		data, err := cmds[i].Result()
		if err != nil {
			return nil, fmt.Errorf("reading worker %s: %w", id, err)
		}
		info := WorkerInfo{ID: id}
		if len(data) > 0 {
			info.Host = data["host"]
			info.PID = parseInt(data["pid"])
			if ns := parseInt64(data["last_heartbeat"]); ns > 0 {
				info.LastHeartbeat = time.Unix(0, ns)
			}
			info.Alive = !info.LastHeartbeat.IsZero() && now.Sub(info.LastHeartbeat) < r.staleAfter
			if raw := data["job"]; raw != "" {
				job, err := decodeJobDescriptor(raw)
				if err != nil {
					r.logger.Warn("skipping malformed job descriptor", "worker", id, "error", err)
				} else {
					info.Job = job
				}
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Working implements WorkerRegistry. Dead workers are skipped and pruned.
func (r *RedisWorkerRegistry) Working(ctx context.Context) ([]JobDescriptor, error) {
	infos, err := r.Workers(ctx)
	if err != nil {
		return nil, err
	}
	var jobs []JobDescriptor
	for _, info := range infos {
		if !info.Alive {
			if err := r.Remove(ctx, info.ID); err != nil {
				r.logger.Warn("pruning dead worker failed", "worker", info.ID, "error", err)
			} else {
				r.logger.Info("pruned dead worker", "worker", info.ID, "last_heartbeat", info.LastHeartbeat)
			}
			continue
		}
		if info.Job != nil {
			jobs = append(jobs, *info.Job)
		}
	}
	return jobs, nil
}

// decodeJobDescriptor keeps numbers as json.Number so large integers survive
// the round trip and fingerprint like their originals.
func decodeJobDescriptor(raw string) (*JobDescriptor, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var job JobDescriptor
	if err := dec.Decode(&job); err != nil {
		return nil, err
	}
	return &job, nil
}

// NewWorkerID returns an identifier unique to this process, in the
// host:pid:nonce form.
func NewWorkerID() string {
	host, _ := os.Hostname()
	var nonce [4]byte
	_, _ = rand.Read(nonce[:])
	return host + ":" + strconv.Itoa(os.Getpid()) + ":" + hex.EncodeToString(nonce[:])
}
