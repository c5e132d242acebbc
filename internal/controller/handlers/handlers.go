// Package handlers contains HTTP handlers for the controller API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"taskplane/internal/cache"
	"taskplane/internal/executor"
	"taskplane/internal/goalstate"
	"taskplane/internal/store"
	"taskplane/internal/task"
	"taskplane/pkg/api"
)

// StoreFactory combines the read-side interfaces the handlers need. All
// writes go through the Driver.
type StoreFactory interface {
	Ping(ctx context.Context) error
	store.JobStore
	store.TaskStore
	store.EventLedger
}

// Driver is the write path: lifecycle directives and execution-layer reports.
type Driver interface {
	AdmitJob(ctx context.Context, job *task.JobConfig) error
	StartInstances(ctx context.Context, jobID uuid.UUID, ranges []goalstate.InstanceRange) (*goalstate.BulkResult, error)
	StopInstances(ctx context.Context, jobID uuid.UUID, ranges []goalstate.InstanceRange) (*goalstate.BulkResult, error)
	RestartInstances(ctx context.Context, jobID uuid.UUID, ranges []goalstate.InstanceRange) (*goalstate.BulkResult, error)
	RefreshInstances(ctx context.Context, jobID uuid.UUID, ranges []goalstate.InstanceRange) (*goalstate.BulkResult, error)
	ReportStateChange(ctx context.Context, report goalstate.StateReport) error
	ReportHealth(ctx context.Context, taskID string, report task.HealthReport) error
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	store  StoreFactory
	driver Driver
	cache  *cache.TaskCache
	exec   executor.ExecutionLayer
	logger *slog.Logger
}

// New creates a new Handlers instance with the given dependencies.
func New(s StoreFactory, d Driver, c *cache.TaskCache, exec executor.ExecutionLayer, logger *slog.Logger) *Handlers {
	return &Handlers{store: s, driver: d, cache: c, exec: exec, logger: logger}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

// domainError maps typed domain errors onto HTTP statuses.
func (h *Handlers) domainError(w http.ResponseWriter, err error) {
	var outOfRange *task.OutOfRangeError
	switch {
	case errors.Is(err, task.ErrJobNotFound):
		h.httpError(w, "Job not found", http.StatusNotFound)
	case errors.Is(err, task.ErrInstanceNotFound):
		h.httpError(w, "Instance not found", http.StatusNotFound)
	case errors.As(err, &outOfRange):
		h.httpError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, task.ErrNeverRun):
		h.httpError(w, "Instance has never run", http.StatusPreconditionFailed)
	case task.IsStaleRevision(err):
		h.httpError(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("request failed", "error", err)
		h.httpError(w, "Internal error", http.StatusInternalServerError)
	}
}

// jobIDFromPath parses the {job} path segment.
func (h *Handlers) jobIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(r.PathValue("job"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return jobID, true
}

// instanceFromPath parses the {instance} path segment.
func (h *Handlers) instanceFromPath(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	n, err := strconv.ParseUint(r.PathValue("instance"), 10, 32)
	if err != nil {
		h.httpError(w, "Invalid instance id", http.StatusBadRequest)
		return 0, false
	}
	return uint32(n), true
}

func taskResponse(jobID uuid.UUID, instanceID uint32, rt *task.RuntimeInfo) api.TaskResponse {
	resp := api.TaskResponse{
		JobID:                jobID.String(),
		InstanceID:           instanceID,
		TaskID:               rt.TaskID,
		RunID:                rt.RunID,
		State:                string(rt.State),
		GoalState:            string(rt.GoalState),
		Healthy:              string(rt.Healthy),
		Host:                 rt.Host,
		AgentID:              rt.AgentID,
		Ports:                rt.Ports,
		ConfigVersion:        rt.ConfigVersion,
		DesiredConfigVersion: rt.DesiredConfigVersion,
		FailureCount:         rt.FailureCount,
		Message:              rt.Message,
		Reason:               rt.Reason,
		StartTime:            rt.StartTime,
		CompletionTime:       rt.CompletionTime,
		Revision:             rt.Revision,
	}
	if ts := rt.TerminationStatus; ts != nil {
		resp.Termination = &api.TerminationBody{
			Reason:   string(ts.Reason),
			ExitCode: ts.ExitCode,
			Signal:   ts.Signal,
		}
	}
	return resp
}

func eventBody(e *task.PodEvent) api.PodEventBody {
	return api.PodEventBody{
		TaskID:               e.TaskID,
		RunID:                e.RunID,
		Sequence:             e.Sequence,
		ActualState:          string(e.ActualState),
		GoalState:            string(e.GoalState),
		Timestamp:            e.Timestamp,
		ConfigVersion:        e.ConfigVersion,
		DesiredConfigVersion: e.DesiredConfigVersion,
		AgentID:              e.AgentID,
		Hostname:             e.Hostname,
		Message:              e.Message,
		Reason:               e.Reason,
		PrevTaskID:           e.PrevTaskID,
		Healthy:              string(e.Healthy),
	}
}

func rangesFromRequest(req api.RangesRequest) []goalstate.InstanceRange {
	out := make([]goalstate.InstanceRange, 0, len(req.Ranges))
	for _, r := range req.Ranges {
		out = append(out, goalstate.InstanceRange{From: r.From, To: r.To})
	}
	return out
}
