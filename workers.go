package uniq

import (
	"context"
	"slices"
	"sync"
	"time"
)

// JobDescriptor identifies a job by type and arguments. The JSON form is
// what workers publish to a shared worker registry.
type JobDescriptor struct {
	Type string `json:"class"`
	Args []any  `json:"args"`
}

// WorkerRegistry enumerates the jobs executing across the fleet right now.
// Descriptors whose type is not registered with the Locker are skipped.
type WorkerRegistry interface {
	Working(ctx context.Context) ([]JobDescriptor, error)
}

// WorkerPublisher is the write side of a worker registry: each worker
// announces the job it is executing (nil when idle) and removes itself on
// shutdown.
type WorkerPublisher interface {
	Publish(ctx context.Context, workerID string, job *JobDescriptor) error
	Remove(ctx context.Context, workerID string) error
}

// WorkerRegistryFunc adapts a function to WorkerRegistry.
type WorkerRegistryFunc func(ctx context.Context) ([]JobDescriptor, error)

// Working implements WorkerRegistry.
func (f WorkerRegistryFunc) Working(ctx context.Context) ([]JobDescriptor, error) {
	return f(ctx)
}

// StaticWorkers is a fixed snapshot, mostly useful in tests.
type StaticWorkers []JobDescriptor

// Working implements WorkerRegistry.
func (s StaticWorkers) Working(_ context.Context) ([]JobDescriptor, error) {
	return slices.Clone(s), nil
}

// WorkerInfo describes one worker as seen in a registry.
type WorkerInfo struct {
	ID            string
	Host          string
	PID           int
	LastHeartbeat time.Time
	Job           *JobDescriptor // nil when idle
	Alive         bool
}

// MemoryWorkers is an in-process worker registry for tests and single
// process deployments paired with MemoryStore.
type MemoryWorkers struct {
	mu      sync.RWMutex
	workers map[string]*JobDescriptor
}

var (
	_ WorkerRegistry  = (*MemoryWorkers)(nil)
	_ WorkerPublisher = (*MemoryWorkers)(nil)
)

// NewMemoryWorkers returns an empty registry.
func NewMemoryWorkers() *MemoryWorkers {
	return &MemoryWorkers{workers: make(map[string]*JobDescriptor)}
}

// Publish implements WorkerPublisher.
func (m *MemoryWorkers) Publish(_ context.Context, workerID string, job *JobDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job != nil {
		cp := *job
		job = &cp
	}
	m.workers[workerID] = job
	return nil
}

// Remove implements WorkerPublisher.
func (m *MemoryWorkers) Remove(_ context.Context, workerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workers, workerID)
	return nil
}

// Working implements WorkerRegistry.
func (m *MemoryWorkers) Working(_ context.Context) ([]JobDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]JobDescriptor, 0, len(m.workers))
	for _, job := range m.workers {
		if job != nil {
			out = append(out, *job)
		}
	}
	return out, nil
}
