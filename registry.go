package uniq

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// FingerprintFunc derives the uniqueness fingerprint of a job's arguments.
type FingerprintFunc func(args []any) string

// JobType is a registered job type and the settings its locks use.
type JobType struct {
	Name string

	// LockTTL is the auto-expiry set on a freshly acquired lock.
	// Zero or negative disables expiry.
	LockTTL time.Duration

	// Fingerprint derives the lock fingerprint. Defaults to Canonicalize.
	Fingerprint FingerprintFunc
}

// LockKey returns the lock key for args under this type's fingerprint.
func (jt *JobType) LockKey(args []any) string {
	return lockKeyFor(jt.Name, jt.Fingerprint(args))
}

// RunKey returns the execution-marker key for args.
func (jt *JobType) RunKey(args []any) string {
	return RunKey(jt.LockKey(args))
}

// TypeOption configures a JobType at registration.
type TypeOption func(*JobType)

// WithLockTTL sets the lock auto-expiry. Pass 0 to disable expiry.
func WithLockTTL(d time.Duration) TypeOption {
	return func(jt *JobType) { jt.LockTTL = d }
}

// WithFingerprint replaces the default argument fingerprint, e.g. to ignore
// an argument that differs between otherwise identical jobs.
func WithFingerprint(fn FingerprintFunc) TypeOption {
	return func(jt *JobType) {
		if fn != nil {
			jt.Fingerprint = fn
		}
	}
}

// Registry maps job type identifiers to their lock settings. Job types in a
// worker snapshot that are missing from the registry are skipped during
// staleness checks. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*JobType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*JobType)}
}

// Register adds a job type. Every process sharing a store must register the
// same types with the same fingerprints.
func (r *Registry) Register(name string, opts ...TypeOption) (*JobType, error) {
	if name == "" {
		return nil, ErrInvalidJobType
	}
	jt := &JobType{
		Name:        name,
		LockTTL:     DefaultLockTTL,
		Fingerprint: defaultFingerprint,
	}
	for _, opt := range opts {
		opt(jt)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateJobType, name)
	}
	r.types[name] = jt
	return jt, nil
}

// Lookup returns the job type registered under name.
func (r *Registry) Lookup(name string) (*JobType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jt, ok := r.types[name]
	return jt, ok
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// resolveLockKey finds the registered type a lock key belongs to. When type
// names overlap ("a" and "a-b"), the longest match wins.
func (r *Registry) resolveLockKey(lockKey string) (*JobType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *JobType
	for name, jt := range r.types {
		if !strings.HasPrefix(lockKey, lockNamePrefix+":"+name+"-") {
			continue
		}
		if best == nil || len(name) > len(best.Name) {
			best = jt
		}
	}
	return best, best != nil
}

func defaultFingerprint(args []any) string {
	return Canonicalize(args)
}
