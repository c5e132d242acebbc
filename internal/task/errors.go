package task

import (
	"errors"
	"fmt"
)

// Sentinel errors for the lifecycle error taxonomy. Handlers map these onto
// HTTP status codes; bulk directives capture per-instance errors instead of
// aborting siblings.
var (
	// ErrJobNotFound is returned when the referenced job does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrInstanceNotFound is returned when the instance exists in range but
	// has no persisted or cached record.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrNeverRun is returned for actions that require at least one run,
	// such as browsing the sandbox of an instance that was never launched.
	ErrNeverRun = errors.New("instance has never run")
)

// Constraint tree validation failures.
var (
	errConstraintUnknownKind    = errors.New("constraint: unknown kind")
	errConstraintLeafChildren   = errors.New("constraint: label leaf must not have children")
	errConstraintEmptyKey       = errors.New("constraint: label leaf requires a key")
	errConstraintCompositeLabel = errors.New("constraint: composite node must not carry a label")
)

// OutOfRangeError is returned when an instance ID is at or beyond the job's
// declared instance count.
type OutOfRangeError struct {
	InstanceID    uint32
	InstanceCount uint32
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("instance %d out of range, job has %d instances", e.InstanceID, e.InstanceCount)
}

// InvalidTransitionError reports an attempted edge that is not in the
// transition graph. The runtime is left unchanged.
type InvalidTransitionError struct {
	TaskID string
	From   State
	To     State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for task %s", e.From, e.To, e.TaskID)
}

// StaleRevisionError is an optimistic-concurrency conflict: the caller's
// expected revision no longer matches the current one. The caller must
// re-read and retry.
type StaleRevisionError struct {
	TaskID   string
	Expected uint64
	Current  uint64
}

func (e *StaleRevisionError) Error() string {
	return fmt.Sprintf("stale revision for task %s: expected %d, current %d", e.TaskID, e.Expected, e.Current)
}

// IsStaleRevision reports whether err is (or wraps) a revision conflict.
func IsStaleRevision(err error) bool {
	var sre *StaleRevisionError
	return errors.As(err, &sre)
}

// IsInvalidTransition reports whether err is (or wraps) a rejected edge.
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}
