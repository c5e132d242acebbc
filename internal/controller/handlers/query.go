package handlers

import (
	"encoding/json"
	"net/http"

	"taskplane/internal/query"
	"taskplane/internal/task"
	"taskplane/pkg/api"
)

// QueryTasks handles POST /jobs/{job}/tasks:query.
// Filters the job's instances by state, name and host and returns one page.
func (h *Handlers) QueryTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, ok := h.jobIDFromPath(w, r)
	if !ok {
		return
	}

	var req api.QueryTasksRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.httpError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.domainError(w, err)
		return
	}

	records, err := h.store.ListTasks(ctx, jobID, 0, job.InstanceCount)
	if err != nil {
		h.domainError(w, err)
		return
	}

	spec := query.Spec{Names: req.Names, Hosts: req.Hosts}
	for _, s := range req.States {
		spec.States = append(spec.States, task.State(s))
	}

	result, err := query.Run(records, spec, query.Pagination{
		Offset: req.Offset,
		Limit:  req.Limit,
		Token:  req.Token,
	})
	if err != nil {
		h.httpError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := api.QueryTasksResponse{
		Tasks:     make([]api.TaskResponse, 0, len(result.Records)),
		Total:     result.Total,
		NextToken: result.NextToken,
	}
	for _, info := range result.Records {
		resp.Tasks = append(resp.Tasks, taskResponse(jobID, info.InstanceID, info.Runtime))
	}
	h.respondJson(w, http.StatusOK, resp)
}
