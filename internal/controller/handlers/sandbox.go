package handlers

import (
	"net/http"

	"taskplane/internal/task"
	"taskplane/pkg/api"
)

// BrowseSandbox handles GET /jobs/{job}/tasks/{instance}/sandbox?task_id=.
// Lists the sandbox files of one run. Without task_id the current run is
// browsed; a run that never reached the execution layer has no sandbox and
// yields 412.
func (h *Handlers) BrowseSandbox(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, ok := h.jobIDFromPath(w, r)
	if !ok {
		return
	}
	instanceID, ok := h.instanceFromPath(w, r)
	if !ok {
		return
	}

	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		info, err := h.store.GetTask(ctx, jobID, instanceID)
		if err != nil {
			h.domainError(w, err)
			return
		}
		if info.Runtime.Host == "" {
			h.domainError(w, task.ErrNeverRun)
			return
		}
		taskID = info.Runtime.TaskID
	} else if _, _, _, err := task.ParseTaskID(taskID); err != nil {
		h.httpError(w, "Invalid task_id", http.StatusBadRequest)
		return
	}

	listing, err := h.exec.ListSandboxFiles(ctx, taskID)
	if err != nil {
		h.domainError(w, err)
		return
	}

	h.respondJson(w, http.StatusOK, api.SandboxResponse{
		Hostname: listing.Hostname,
		Port:     listing.Port,
		Paths:    listing.Paths,
	})
}
