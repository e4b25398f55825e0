package uniq

import "errors"

var (
	// ErrUnknownJobType is returned when a hook is called for a job type that
	// was never registered.
	ErrUnknownJobType = errors.New("uniq: unknown job type")

	// ErrDuplicateJobType is returned when a job type is registered twice.
	ErrDuplicateJobType = errors.New("uniq: duplicate job type registration")

	// ErrInvalidJobType is returned when a job type name is empty.
	ErrInvalidJobType = errors.New("uniq: invalid job type")

	// ErrNoStore is returned by NewLocker when no store is given.
	ErrNoStore = errors.New("uniq: store is required")

	// ErrNoWorkerRegistry is returned by NewLocker when no worker registry is given.
	ErrNoWorkerRegistry = errors.New("uniq: worker registry is required")

	// ErrNoScanner is returned when an operation needs to enumerate keys and
	// the configured store cannot.
	ErrNoScanner = errors.New("uniq: store does not support key scanning")
)
