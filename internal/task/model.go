package task

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskID identifies one execution attempt of an instance. It is rendered as
// "<job>-<instance>-<run>" and treated as opaque outside this package.
func TaskID(jobID uuid.UUID, instanceID uint32, runID uint64) string {
	return fmt.Sprintf("%s-%d-%d", jobID, instanceID, runID)
}

// ParseTaskID splits a rendered task ID back into its components.
func ParseTaskID(id string) (jobID uuid.UUID, instanceID uint32, runID uint64, err error) {
	idx := strings.LastIndex(id, "-")
	if idx < 0 {
		return uuid.Nil, 0, 0, fmt.Errorf("malformed task id %q", id)
	}
	runID, err = strconv.ParseUint(id[idx+1:], 10, 64)
	if err != nil {
		return uuid.Nil, 0, 0, fmt.Errorf("malformed run id in task id %q: %w", id, err)
	}
	rest := id[:idx]
	idx = strings.LastIndex(rest, "-")
	if idx < 0 {
		return uuid.Nil, 0, 0, fmt.Errorf("malformed task id %q", id)
	}
	inst, err := strconv.ParseUint(rest[idx+1:], 10, 32)
	if err != nil {
		return uuid.Nil, 0, 0, fmt.Errorf("malformed instance id in task id %q: %w", id, err)
	}
	jobID, err = uuid.Parse(rest[:idx])
	if err != nil {
		return uuid.Nil, 0, 0, fmt.Errorf("malformed job id in task id %q: %w", id, err)
	}
	return jobID, uint32(inst), runID, nil
}

// TerminationReason explains why a run ended in a non-SUCCEEDED terminal state.
type TerminationReason string

const (
	TerminationKilledOnRequest     TerminationReason = "KILLED_ON_REQUEST"
	TerminationFailed              TerminationReason = "FAILED"
	TerminationKilledForMaintenance TerminationReason = "KILLED_FOR_MAINTENANCE"
	TerminationPreempted           TerminationReason = "PREEMPTED"
	TerminationDeadlineExceeded    TerminationReason = "DEADLINE_EXCEEDED"
)

// TerminationStatus is populated exactly when a run enters a non-SUCCEEDED
// terminal state, and cleared when the instance relaunches under a new run.
type TerminationStatus struct {
	Reason   TerminationReason `json:"reason"`
	ExitCode *int              `json:"exit_code,omitempty"`
	Signal   string            `json:"signal,omitempty"`
}

// RuntimeInfo is the mutable snapshot of one instance. It carries both the
// actual state vector and the goal state vector the reconciler converges on.
type RuntimeInfo struct {
	State     State     `json:"state"`
	GoalState GoalState `json:"goal_state"`

	Host    string `json:"host,omitempty"`
	AgentID string `json:"agent_id,omitempty"`

	// Reserved ports, keyed by port name. Keys are unique; ordering is
	// irrelevant.
	Ports map[string]uint32 `json:"ports,omitempty"`

	// Identity of the current, previous and target execution attempt.
	TaskID        string `json:"task_id"`
	PrevTaskID    string `json:"prev_task_id,omitempty"`
	DesiredTaskID string `json:"desired_task_id,omitempty"`

	RunID uint64 `json:"run_id"`

	ConfigVersion        uint64 `json:"config_version"`
	DesiredConfigVersion uint64 `json:"desired_config_version"`

	FailureCount uint32 `json:"failure_count"`

	Healthy           HealthState        `json:"healthy"`
	TerminationStatus *TerminationStatus `json:"termination_status,omitempty"`

	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// Revision is the optimistic-concurrency change marker. Every accepted
	// mutation increments it by one.
	Revision uint64 `json:"revision"`

	StartTime      *time.Time `json:"start_time,omitempty"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`
	UpdateTime     time.Time  `json:"update_time"`
}

// Clone returns a deep copy so cached snapshots can be handed out without
// exposing the writer's copy.
func (r *RuntimeInfo) Clone() *RuntimeInfo {
	c := *r
	if r.Ports != nil {
		c.Ports = make(map[string]uint32, len(r.Ports))
		for k, v := range r.Ports {
			c.Ports[k] = v
		}
	}
	if r.TerminationStatus != nil {
		ts := *r.TerminationStatus
		c.TerminationStatus = &ts
	}
	if r.StartTime != nil {
		t := *r.StartTime
		c.StartTime = &t
	}
	if r.CompletionTime != nil {
		t := *r.CompletionTime
		c.CompletionTime = &t
	}
	return &c
}

// NeedsRefresh reports config drift: the instance runs under an older config
// than the desired one. The reconciler uses this to trigger an in-place
// restart at the next terminal point.
func (r *RuntimeInfo) NeedsRefresh() bool {
	return r.ConfigVersion != r.DesiredConfigVersion && r.State.IsRunningFamily()
}

// PodEvent is one immutable record in the per-instance event ledger.
type PodEvent struct {
	TaskID               string      `json:"task_id"`
	RunID                uint64      `json:"run_id"`
	Sequence             uint64      `json:"sequence"`
	ActualState          State       `json:"actual_state"`
	GoalState            GoalState   `json:"goal_state"`
	Timestamp            time.Time   `json:"timestamp"`
	ConfigVersion        uint64      `json:"config_version"`
	DesiredConfigVersion uint64      `json:"desired_config_version"`
	AgentID              string      `json:"agent_id,omitempty"`
	Hostname             string      `json:"hostname,omitempty"`
	Message              string      `json:"message,omitempty"`
	Reason               string      `json:"reason,omitempty"`
	PrevTaskID           string      `json:"prev_task_id,omitempty"`
	Healthy              HealthState `json:"healthy,omitempty"`
}

// PortConfig declares a named port the task wants reserved at placement time.
type PortConfig struct {
	Name  string `json:"name"`
	Value uint32 `json:"value,omitempty"` // 0 means allocate dynamically
}

// HealthCheckConfig enables the health sub-state machine for a task.
type HealthCheckConfig struct {
	Enabled                bool   `json:"enabled"`
	InitialIntervalSecs    uint32 `json:"initial_interval_secs,omitempty"`
	IntervalSecs           uint32 `json:"interval_secs,omitempty"`
	MaxConsecutiveFailures uint32 `json:"max_consecutive_failures,omitempty"`
}

// TaskConfig is the immutable per-version configuration a run is launched
// under.
type TaskConfig struct {
	Name        string             `json:"name"`
	Image       string             `json:"image"`
	Command     []string           `json:"command,omitempty"`
	Ports       []PortConfig       `json:"ports,omitempty"`
	Labels      map[string]string  `json:"labels,omitempty"`
	Constraint  *Constraint        `json:"constraint,omitempty"`
	HealthCheck *HealthCheckConfig `json:"health_check,omitempty"`
	Version     uint64             `json:"version"`
}

// TaskInfo pairs the runtime snapshot with the config it was launched under.
type TaskInfo struct {
	JobID      uuid.UUID    `json:"job_id"`
	InstanceID uint32       `json:"instance_id"`
	Runtime    *RuntimeInfo `json:"runtime"`
	Config     *TaskConfig  `json:"config"`
}

// JobConfig is the enclosing job: a named collection of instances sharing
// configuration. Version increases monotonically with every config change.
type JobConfig struct {
	JobID         uuid.UUID   `json:"job_id"`
	Name          string      `json:"name"`
	InstanceCount uint32      `json:"instance_count"`
	Version       uint64      `json:"version"`
	Default       *TaskConfig `json:"default_config"`
	CreatedAt     time.Time   `json:"created_at"`
}

// NewRuntime builds the initial runtime snapshot for the first run of an
// instance, admitted at INITIALIZED with goal RUNNING.
func NewRuntime(jobID uuid.UUID, instanceID uint32, configVersion uint64, healthEnabled bool) *RuntimeInfo {
	health := HealthDisabled
	if healthEnabled {
		health = HealthUnknown
	}
	const firstRun = 1
	id := TaskID(jobID, instanceID, firstRun)
	return &RuntimeInfo{
		State:                StateInitialized,
		GoalState:            GoalRunning,
		TaskID:               id,
		DesiredTaskID:        id,
		RunID:                firstRun,
		ConfigVersion:        configVersion,
		DesiredConfigVersion: configVersion,
		Healthy:              health,
		Revision:             1,
		UpdateTime:           time.Now().UTC(),
	}
}
