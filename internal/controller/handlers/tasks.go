package handlers

import (
	"net/http"
	"strconv"

	"taskplane/internal/task"
	"taskplane/pkg/api"
)

// GetTask handles GET /jobs/{job}/tasks/{instance}.
// Returns the persisted runtime snapshot of one instance.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, ok := h.jobIDFromPath(w, r)
	if !ok {
		return
	}
	instanceID, ok := h.instanceFromPath(w, r)
	if !ok {
		return
	}

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.domainError(w, err)
		return
	}
	if instanceID >= job.InstanceCount {
		h.domainError(w, &task.OutOfRangeError{InstanceID: instanceID, InstanceCount: job.InstanceCount})
		return
	}

	info, err := h.store.GetTask(ctx, jobID, instanceID)
	if err != nil {
		h.domainError(w, err)
		return
	}

	h.respondJson(w, http.StatusOK, taskResponse(jobID, instanceID, info.Runtime))
}

// ListTasks handles GET /jobs/{job}/tasks?from=&to=.
// Returns snapshots for every admitted instance in [from, to). The range
// defaults to the whole job; a from at or past the instance count is
// rejected, while to is clamped.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, ok := h.jobIDFromPath(w, r)
	if !ok {
		return
	}

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.domainError(w, err)
		return
	}

	from, to := uint32(0), job.InstanceCount
	if s := r.URL.Query().Get("from"); s != "" {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			h.httpError(w, "Invalid from", http.StatusBadRequest)
			return
		}
		from = uint32(n)
	}
	if s := r.URL.Query().Get("to"); s != "" {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			h.httpError(w, "Invalid to", http.StatusBadRequest)
			return
		}
		to = uint32(n)
	}
	if from >= job.InstanceCount {
		h.domainError(w, &task.OutOfRangeError{InstanceID: from, InstanceCount: job.InstanceCount})
		return
	}
	if to > job.InstanceCount {
		to = job.InstanceCount
	}

	infos, err := h.store.ListTasks(ctx, jobID, from, to)
	if err != nil {
		h.domainError(w, err)
		return
	}

	resp := api.ListTasksResponse{Tasks: make(map[uint32]api.TaskResponse, len(infos))}
	for id, info := range infos {
		resp.Tasks[id] = taskResponse(jobID, id, info.Runtime)
	}
	h.respondJson(w, http.StatusOK, resp)
}

// GetTaskCache handles GET /jobs/{job}/tasks/{instance}/cache.
// Returns the in-memory snapshot without touching the store. A cache miss is
// a 404, not an error worth retrying.
func (h *Handlers) GetTaskCache(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDFromPath(w, r)
	if !ok {
		return
	}
	instanceID, ok := h.instanceFromPath(w, r)
	if !ok {
		return
	}

	rt, ok := h.cache.Get(jobID, instanceID)
	if !ok {
		h.httpError(w, "Instance not cached", http.StatusNotFound)
		return
	}
	h.respondJson(w, http.StatusOK, taskResponse(jobID, instanceID, rt))
}
