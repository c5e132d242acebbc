package handlers

import (
	"encoding/json"
	"net/http"

	"taskplane/internal/goalstate"
	"taskplane/internal/task"
	"taskplane/pkg/api"
)

// ---------------------------------------------------------
// Internal Execution-Layer Endpoints
// Called by the launcher/agent side, not by operators.
// These should run on a separate port or strict network rules.
// ---------------------------------------------------------

// InternalStateReport handles PUT /internal/tasks/{task_id}/state.
// The execution layer calls this whenever a run's observed state changes.
func (h *Handlers) InternalStateReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID := r.PathValue("task_id")
	if _, _, _, err := task.ParseTaskID(taskID); err != nil {
		h.httpError(w, "Invalid task id", http.StatusBadRequest)
		return
	}

	var req api.StateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid body", http.StatusBadRequest)
		return
	}

	err := h.driver.ReportStateChange(ctx, goalstate.StateReport{
		TaskID:   taskID,
		State:    task.State(req.State),
		Message:  req.Message,
		Reason:   req.Reason,
		ExitCode: req.ExitCode,
		Signal:   req.Signal,
	})
	if err != nil {
		if task.IsInvalidTransition(err) {
			h.httpError(w, err.Error(), http.StatusConflict)
			return
		}
		h.domainError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// InternalHealthReport handles PUT /internal/tasks/{task_id}/health.
// One call per health-check probe.
func (h *Handlers) InternalHealthReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID := r.PathValue("task_id")
	if _, _, _, err := task.ParseTaskID(taskID); err != nil {
		h.httpError(w, "Invalid task id", http.StatusBadRequest)
		return
	}

	var req api.HealthReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid body", http.StatusBadRequest)
		return
	}

	err := h.driver.ReportHealth(ctx, taskID, task.HealthReport{
		Passed:  req.Passed,
		Message: req.Message,
	})
	if err != nil {
		h.domainError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
