package handlers

import (
	"net/http"
	"strconv"

	"taskplane/pkg/api"
)

// defaultEventRunLimit bounds how many distinct runs' worth of history a
// read returns when the caller does not say.
const defaultEventRunLimit = 10

// GetPodEvents handles GET /jobs/{job}/tasks/{instance}/events?limit=&run_id=.
// Events come back in reverse-chronological order, newest run first. With
// run_id set only that run's history is returned.
func (h *Handlers) GetPodEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, ok := h.jobIDFromPath(w, r)
	if !ok {
		return
	}
	instanceID, ok := h.instanceFromPath(w, r)
	if !ok {
		return
	}

	limit := uint32(defaultEventRunLimit)
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil || n == 0 {
			h.httpError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = uint32(n)
	}

	var runID *uint64
	if s := r.URL.Query().Get("run_id"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			h.httpError(w, "Invalid run_id", http.StatusBadRequest)
			return
		}
		runID = &n
	}

	events, err := h.store.GetEvents(ctx, jobID, instanceID, limit, runID)
	if err != nil {
		h.domainError(w, err)
		return
	}

	resp := api.GetEventsResponse{Events: make([]api.PodEventBody, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, eventBody(e))
	}
	h.respondJson(w, http.StatusOK, resp)
}

// DeletePodEvents handles DELETE /jobs/{job}/tasks/{instance}/events?run_id=.
// Removes history for runs up to and including run_id. Deleting nothing is
// still a success.
func (h *Handlers) DeletePodEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, ok := h.jobIDFromPath(w, r)
	if !ok {
		return
	}
	instanceID, ok := h.instanceFromPath(w, r)
	if !ok {
		return
	}

	s := r.URL.Query().Get("run_id")
	if s == "" {
		h.httpError(w, "run_id is required", http.StatusBadRequest)
		return
	}
	runID, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		h.httpError(w, "Invalid run_id", http.StatusBadRequest)
		return
	}

	if err := h.store.DeleteEventsUpTo(ctx, jobID, instanceID, runID); err != nil {
		h.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
