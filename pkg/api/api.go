// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and Controller.
package api

import "time"

// CreateJobRequest is the request body for admitting a new job.
type CreateJobRequest struct {
	Name          string         `json:"name"`
	InstanceCount uint32         `json:"instance_count"`
	Config        TaskConfigBody `json:"config"`
}

// CreateJobResponse is the response body after admitting a job.
type CreateJobResponse struct {
	JobID string `json:"job_id"`
}

// UpdateJobConfigRequest publishes a new immutable config version for a job.
type UpdateJobConfigRequest struct {
	Config TaskConfigBody `json:"config"`
}

// UpdateJobConfigResponse reports the config version now current for the job.
type UpdateJobConfigResponse struct {
	JobID   string `json:"job_id"`
	Version uint64 `json:"version"`
}

// TaskConfigBody carries an immutable task configuration version.
type TaskConfigBody struct {
	Name        string            `json:"name"`
	Image       string            `json:"image"`
	Command     []string          `json:"command,omitempty"`
	Version     uint64            `json:"version"`
	Ports       []PortConfigBody  `json:"ports,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	HealthCheck *HealthCheckBody  `json:"health_check,omitempty"`
	Constraint  *ConstraintBody   `json:"constraint,omitempty"`
}

// PortConfigBody names a port the task exposes.
type PortConfigBody struct {
	Name  string `json:"name"`
	Value uint32 `json:"value,omitempty"`
}

// HealthCheckBody configures the task's health checking.
type HealthCheckBody struct {
	Enabled                bool   `json:"enabled"`
	InitialIntervalSecs    uint32 `json:"initial_interval_secs,omitempty"`
	IntervalSecs           uint32 `json:"interval_secs,omitempty"`
	MaxConsecutiveFailures uint32 `json:"max_consecutive_failures,omitempty"`
}

// ConstraintBody is a placement constraint tree.
type ConstraintBody struct {
	Kind     string           `json:"kind"`
	Key      string           `json:"key,omitempty"`
	Value    string           `json:"value,omitempty"`
	Children []ConstraintBody `json:"children,omitempty"`
}

// InstanceRangeBody is a half-open [from, to) instance interval.
type InstanceRangeBody struct {
	From uint32 `json:"from"`
	To   uint32 `json:"to"`
}

// RangesRequest is the body shared by the bulk lifecycle endpoints.
type RangesRequest struct {
	Ranges []InstanceRangeBody `json:"ranges,omitempty"`
}

// BulkResponse partitions a bulk directive's per-instance outcomes.
type BulkResponse struct {
	Succeeded []uint32          `json:"succeeded"`
	Failed    map[uint32]string `json:"failed,omitempty"`
}

// TerminationBody describes why a run ended.
type TerminationBody struct {
	Reason   string `json:"reason"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Signal   string `json:"signal,omitempty"`
}

// TaskResponse is the runtime snapshot of one instance.
type TaskResponse struct {
	JobID                string            `json:"job_id"`
	InstanceID           uint32            `json:"instance_id"`
	TaskID               string            `json:"task_id"`
	RunID                uint64            `json:"run_id"`
	State                string            `json:"state"`
	GoalState            string            `json:"goal_state"`
	Healthy              string            `json:"healthy,omitempty"`
	Host                 string            `json:"host,omitempty"`
	AgentID              string            `json:"agent_id,omitempty"`
	Ports                map[string]uint32 `json:"ports,omitempty"`
	ConfigVersion        uint64            `json:"config_version"`
	DesiredConfigVersion uint64            `json:"desired_config_version"`
	FailureCount         uint32            `json:"failure_count"`
	Message              string            `json:"message,omitempty"`
	Reason               string            `json:"reason,omitempty"`
	Termination          *TerminationBody  `json:"termination,omitempty"`
	StartTime            *time.Time        `json:"start_time,omitempty"`
	CompletionTime       *time.Time        `json:"completion_time,omitempty"`
	Revision             uint64            `json:"revision"`
}

// ListTasksResponse is the response body for an instance-range listing.
type ListTasksResponse struct {
	Tasks map[uint32]TaskResponse `json:"tasks"`
}

// QueryTasksRequest filters and paginates instances of a job.
type QueryTasksRequest struct {
	States []string `json:"states,omitempty"`
	Names  []string `json:"names,omitempty"`
	Hosts  []string `json:"hosts,omitempty"`
	Offset uint32   `json:"offset,omitempty"`
	Limit  uint32   `json:"limit,omitempty"`
	Token  string   `json:"token,omitempty"`
}

// QueryTasksResponse is the response body for a task query.
type QueryTasksResponse struct {
	Tasks     []TaskResponse `json:"tasks"`
	Total     uint32         `json:"total"`
	NextToken string         `json:"next_token,omitempty"`
}

// PodEventBody is one entry of an instance's event history.
type PodEventBody struct {
	TaskID               string    `json:"task_id"`
	RunID                uint64    `json:"run_id"`
	Sequence             uint64    `json:"sequence"`
	ActualState          string    `json:"actual_state"`
	GoalState            string    `json:"goal_state"`
	Timestamp            time.Time `json:"timestamp"`
	ConfigVersion        uint64    `json:"config_version"`
	DesiredConfigVersion uint64    `json:"desired_config_version"`
	AgentID              string    `json:"agent_id,omitempty"`
	Hostname             string    `json:"hostname,omitempty"`
	Message              string    `json:"message,omitempty"`
	Reason               string    `json:"reason,omitempty"`
	PrevTaskID           string    `json:"prev_task_id,omitempty"`
	Healthy              string    `json:"healthy,omitempty"`
}

// GetEventsResponse is the response body for an event-history read.
type GetEventsResponse struct {
	Events []PodEventBody `json:"events"`
}

// SandboxResponse lists an instance's sandbox files.
type SandboxResponse struct {
	Hostname string   `json:"hostname"`
	Port     uint32   `json:"port,omitempty"`
	Paths    []string `json:"paths"`
}

// StateReportRequest is the payload the execution layer posts when a task's
// actual state changes.
type StateReportRequest struct {
	State    string `json:"state"`
	Message  string `json:"message,omitempty"`
	Reason   string `json:"reason,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Signal   string `json:"signal,omitempty"`
}

// HealthReportRequest is the payload the execution layer posts per health
// check probe.
type HealthReportRequest struct {
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
