package uniq

import (
	"context"
	"time"
)

// Store is the shared key-value store all producers and workers coordinate
// through. SetNX must be atomic across every process using the store; it is
// the only point that provides mutual exclusion.
type Store interface {
	// Get returns the value at key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set writes value at key unconditionally.
	Set(ctx context.Context, key, value string) error

	// SetNX writes value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string) (bool, error)

	// Expire sets a time-to-live on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Del removes the given keys. Absent keys are ignored.
	Del(ctx context.Context, keys ...string) error
}

// Scanner is implemented by stores that can enumerate their keys. The
// reaper and the CLI need it to find locks without knowing their arguments.
type Scanner interface {
	// Keys returns every live key starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
