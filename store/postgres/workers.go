package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	uniq "github.com/dougcole/resque-uniq"
)

const defaultStaleAfter = 30 * time.Second

var (
	_ uniq.WorkerRegistry  = (*Workers)(nil)
	_ uniq.WorkerPublisher = (*Workers)(nil)
)

// Workers is a heartbeat-based worker registry stored in uniq_workers.
type Workers struct {
	store      *Store
	staleAfter time.Duration
	host       string
	pid        int
}

// Workers returns the worker registry sharing this store's pool. Workers
// whose heartbeat is older than staleAfter count as dead; zero selects 30s.
func (s *Store) Workers(staleAfter time.Duration) *Workers {
	host, _ := os.Hostname()
	w := &Workers{
		store:      s,
		staleAfter: defaultStaleAfter,
		host:       host,
		pid:        os.Getpid(),
	}
	if staleAfter > 0 {
		w.staleAfter = staleAfter
	}
	return w
}

// Publish implements uniq.WorkerPublisher and doubles as the heartbeat.
func (w *Workers) Publish(ctx context.Context, workerID string, job *uniq.JobDescriptor) error {
	var jobJSON []byte
	if job != nil {
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("uniq/postgres: encoding job for worker %s: %w", workerID, err)
		}
		jobJSON = data
	}
	_, err := w.store.pool.Exec(ctx, `
		INSERT INTO uniq_workers (id, host, pid, last_heartbeat, job)
		VALUES ($1, $2, $3, NOW(), $4)
		ON CONFLICT (id) DO UPDATE SET
			host = EXCLUDED.host,
			pid = EXCLUDED.pid,
			last_heartbeat = EXCLUDED.last_heartbeat,
			job = EXCLUDED.job`,
		workerID, w.host, w.pid, jobJSON,
	)
	if err != nil {
		return fmt.Errorf("uniq/postgres: publish worker %s: %w", workerID, err)
	}
	return nil
}

// Remove implements uniq.WorkerPublisher.
func (w *Workers) Remove(ctx context.Context, workerID string) error {
	if _, err := w.store.pool.Exec(ctx, `DELETE FROM uniq_workers WHERE id = $1`, workerID); err != nil {
		return fmt.Errorf("uniq/postgres: remove worker %s: %w", workerID, err)
	}
	return nil
}

// List returns every registered worker, alive or not, sorted by ID.
func (w *Workers) List(ctx context.Context) ([]uniq.WorkerInfo, error) {
	rows, err := w.store.pool.Query(ctx, `
		SELECT id, host, pid, last_heartbeat, job,
		       last_heartbeat > NOW() - $1::interval AS alive
		FROM uniq_workers ORDER BY id`,
		fmt.Sprintf("%d milliseconds", w.staleAfter.Milliseconds()),
	)
	if err != nil {
		return nil, fmt.Errorf("uniq/postgres: list workers: %w", err)
	}
	defer rows.Close()

	var infos []uniq.WorkerInfo
	for rows.Next() {
		var (
			info    uniq.WorkerInfo
			jobJSON []byte
		)
		if err := rows.Scan(&info.ID, &info.Host, &info.PID, &info.LastHeartbeat, &jobJSON, &info.Alive); err != nil {
			return nil, fmt.Errorf("uniq/postgres: scan worker: %w", err)
		}
		if len(jobJSON) > 0 {
			job, err := decodeJob(jobJSON)
			if err != nil {
				w.store.logger.Warn("skipping malformed job descriptor", "worker", info.ID, "error", err)
			} else {
				info.Job = job
			}
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("uniq/postgres: list workers: %w", err)
	}
	return infos, nil
}

// Working implements uniq.WorkerRegistry. Dead workers are pruned.
func (w *Workers) Working(ctx context.Context) ([]uniq.JobDescriptor, error) {
	if _, err := w.store.pool.Exec(ctx,
		`DELETE FROM uniq_workers WHERE last_heartbeat <= NOW() - $1::interval`,
		fmt.Sprintf("%d milliseconds", w.staleAfter.Milliseconds()),
	); err != nil {
		return nil, fmt.Errorf("uniq/postgres: prune workers: %w", err)
	}

	rows, err := w.store.pool.Query(ctx, `SELECT job FROM uniq_workers WHERE job IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("uniq/postgres: working jobs: %w", err)
	}
	raw, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("uniq/postgres: working jobs: %w", err)
	}

	jobs := make([]uniq.JobDescriptor, 0, len(raw))
	for _, data := range raw {
		job, err := decodeJob(data)
		if err != nil {
			w.store.logger.Warn("skipping malformed job descriptor", "error", err)
			continue
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func decodeJob(data []byte) (*uniq.JobDescriptor, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var job uniq.JobDescriptor
	if err := dec.Decode(&job); err != nil {
		return nil, err
	}
	return &job, nil
}
