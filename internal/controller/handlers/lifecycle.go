package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"taskplane/internal/goalstate"
	"taskplane/pkg/api"
)

type bulkFn func(ctx context.Context, jobID uuid.UUID, ranges []goalstate.InstanceRange) (*goalstate.BulkResult, error)

// bulkDirective decodes the shared ranges body, fans the directive out and
// returns the partitioned per-instance outcomes. An empty or absent ranges
// list means the whole job. Already-satisfied instances count as succeeded.
func (h *Handlers) bulkDirective(w http.ResponseWriter, r *http.Request, fn bulkFn) {
	ctx := r.Context()

	jobID, ok := h.jobIDFromPath(w, r)
	if !ok {
		return
	}

	var req api.RangesRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.httpError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	ranges := rangesFromRequest(req)
	if len(ranges) == 0 {
		job, err := h.store.GetJob(ctx, jobID)
		if err != nil {
			h.domainError(w, err)
			return
		}
		ranges = []goalstate.InstanceRange{{From: 0, To: job.InstanceCount}}
	}

	result, err := fn(ctx, jobID, ranges)
	if err != nil {
		h.domainError(w, err)
		return
	}

	resp := api.BulkResponse{Succeeded: result.Succeeded, Failed: result.Failed}
	if resp.Succeeded == nil {
		resp.Succeeded = []uint32{}
	}
	h.respondJson(w, http.StatusOK, resp)
}

// StartTasks handles POST /jobs/{job}/tasks:start.
func (h *Handlers) StartTasks(w http.ResponseWriter, r *http.Request) {
	h.bulkDirective(w, r, h.driver.StartInstances)
}

// StopTasks handles POST /jobs/{job}/tasks:stop.
func (h *Handlers) StopTasks(w http.ResponseWriter, r *http.Request) {
	h.bulkDirective(w, r, h.driver.StopInstances)
}

// RestartTasks handles POST /jobs/{job}/tasks:restart.
func (h *Handlers) RestartTasks(w http.ResponseWriter, r *http.Request) {
	h.bulkDirective(w, r, h.driver.RestartInstances)
}

// RefreshTasks handles POST /jobs/{job}/tasks:refresh.
// Reloads the instances from persisted state and re-reconciles them.
func (h *Handlers) RefreshTasks(w http.ResponseWriter, r *http.Request) {
	h.bulkDirective(w, r, h.driver.RefreshInstances)
}
