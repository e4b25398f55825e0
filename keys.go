package uniq

import (
	"strings"
	"time"
)

const (
	// DefaultLockTTL bounds how long a lock survives a worker that died
	// without running any cleanup path.
	DefaultLockTTL = 6 * time.Hour

	lockNamePrefix    = "lock"
	runLockNamePrefix = "running_"
)

// LockKey returns the store key marking that a job of jobType with args is
// queued or running, using the default Canonicalize fingerprint.
func LockKey(jobType string, args []any) string {
	return lockKeyFor(jobType, Canonicalize(args))
}

func lockKeyFor(jobType, fingerprint string) string {
	return lockNamePrefix + ":" + jobType + "-" + fingerprint
}

// RunKey returns the execution-marker key paired with lockKey.
func RunKey(lockKey string) string {
	return runLockNamePrefix + lockKey
}

// LockKeyFromRunKey is the inverse of RunKey. Keys without the run prefix are
// returned unchanged.
func LockKeyFromRunKey(runKey string) string {
	return strings.TrimPrefix(runKey, runLockNamePrefix)
}
