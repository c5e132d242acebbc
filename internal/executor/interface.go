// Package executor provides the narrow interface to the execution layer that
// actually launches and kills task processes on hosts.
package executor

import (
	"context"

	"github.com/google/uuid"

	"taskplane/internal/task"
)

// LaunchRequest carries everything the execution layer needs to place and
// start one run.
type LaunchRequest struct {
	TaskID     string
	JobID      uuid.UUID
	InstanceID uint32
	RunID      uint64
	Config     *task.TaskConfig
}

// Placement is the host assignment the execution layer made for a launch.
type Placement struct {
	Hostname string
	AgentID  string
	// Allocated ports keyed by the port name from the task config.
	Ports map[string]uint32
}

// SandboxListing is the file listing of one run's sandbox directory.
type SandboxListing struct {
	Hostname string
	Port     uint32
	Paths    []string
}

// ExecutionLayer abstracts the system that runs task processes.
// Implementations include local processes, Docker and Kubernetes.
type ExecutionLayer interface {
	// Launch places and starts a run, returning the host assignment.
	Launch(ctx context.Context, req LaunchRequest) (*Placement, error)

	// Kill delivers a kill signal to a run. Killing an unknown task is an
	// error; the reconciler records it and retries on the next sweep.
	Kill(ctx context.Context, taskID string) error

	// ListSandboxFiles returns the run's sandbox file listing.
	ListSandboxFiles(ctx context.Context, taskID string) (*SandboxListing, error)
}
