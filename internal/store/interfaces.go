// Package store contains the database layer for taskplane.
package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"taskplane/internal/task"
)

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx
// This allows us to pass either a connection pool or an active transaction to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// JobStore handles the persistence of job configurations.
type JobStore interface {
	// CreateJob inserts a new job configuration.
	CreateJob(ctx context.Context, tx DBTransaction, job *task.JobConfig) error

	// GetJob returns a job configuration by its ID.
	GetJob(ctx context.Context, id uuid.UUID) (*task.JobConfig, error)

	// ListJobs returns every job configuration. Used for recovery after a
	// controller restart.
	ListJobs(ctx context.Context) ([]*task.JobConfig, error)

	// UpdateJobVersion bumps the job's config version and replaces the
	// default task config.
	UpdateJobVersion(ctx context.Context, tx DBTransaction, id uuid.UUID, version uint64, config *task.TaskConfig) error
}

// TaskStore holds the current RuntimeInfo + TaskConfig snapshot per instance,
// keyed by (JobID, InstanceID).
type TaskStore interface {
	// CreateTask inserts the initial snapshot of a freshly admitted instance.
	CreateTask(ctx context.Context, tx DBTransaction, info *task.TaskInfo) error

	// GetTask returns the persisted snapshot for one instance.
	GetTask(ctx context.Context, jobID uuid.UUID, instanceID uint32) (*task.TaskInfo, error)

	// ListTasks returns snapshots for instances in [from, to), keyed by
	// instance ID. Instances without a record are absent from the map.
	ListTasks(ctx context.Context, jobID uuid.UUID, from, to uint32) (map[uint32]*task.TaskInfo, error)

	// UpdateRuntime replaces the runtime snapshot guarded by the previous
	// revision. Returns task.StaleRevisionError when another writer won.
	UpdateRuntime(ctx context.Context, tx DBTransaction, jobID uuid.UUID, instanceID uint32, runtime *task.RuntimeInfo) error
}

// EventLedger is the append-only, per-instance, per-run ordered log of
// lifecycle events. Append is the only mutation; events are never edited.
type EventLedger interface {
	// AppendEvent writes one event to the instance's partition. The
	// sequence number within the run is assigned by the ledger.
	AppendEvent(ctx context.Context, tx DBTransaction, jobID uuid.UUID, instanceID uint32, event *task.PodEvent) error

	// GetEvents returns events in reverse-chronological order, descending
	// by (run, sequence). When runID is non-nil only that run is returned;
	// otherwise at most limit distinct runs' worth of events.
	GetEvents(ctx context.Context, jobID uuid.UUID, instanceID uint32, limit uint32, runID *uint64) ([]*task.PodEvent, error)

	// DeleteEventsUpTo removes all events for the instance with
	// RunID <= runID. No-op when nothing matches.
	DeleteEventsUpTo(ctx context.Context, jobID uuid.UUID, instanceID uint32, runID uint64) error
}
