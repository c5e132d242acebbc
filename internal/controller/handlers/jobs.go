package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"taskplane/internal/task"
	"taskplane/pkg/api"
)

// CreateJob handles POST /jobs.
// Admits a job: persists the config, creates every instance at INITIALIZED
// with goal RUNNING and kicks off their reconciliation.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Config.Image == "" {
		h.httpError(w, "Name and Image are required", http.StatusBadRequest)
		return
	}
	if req.InstanceCount == 0 {
		h.httpError(w, "InstanceCount must be at least 1", http.StatusBadRequest)
		return
	}

	config := taskConfigFromBody(req.Config)
	if config.Version == 0 {
		config.Version = 1
	}
	if config.Constraint != nil {
		if err := config.Constraint.Validate(); err != nil {
			h.httpError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	job := &task.JobConfig{
		JobID:         uuid.New(),
		Name:          req.Name,
		InstanceCount: req.InstanceCount,
		Version:       config.Version,
		Default:       config,
		CreatedAt:     time.Now().UTC(),
	}

	if err := h.driver.AdmitJob(ctx, job); err != nil {
		h.domainError(w, err)
		return
	}

	h.respondJson(w, http.StatusCreated, api.CreateJobResponse{JobID: job.JobID.String()})
}

// UpdateJobConfig handles PUT /jobs/{job}/config.
// Publishes a new config version for the job. Versions are immutable and
// strictly increasing; instances pick the new version up on their next
// start or restart directive.
func (h *Handlers) UpdateJobConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, ok := h.jobIDFromPath(w, r)
	if !ok {
		return
	}

	var req api.UpdateJobConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Config.Image == "" {
		h.httpError(w, "Image is required", http.StatusBadRequest)
		return
	}

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.domainError(w, err)
		return
	}

	config := taskConfigFromBody(req.Config)
	if config.Version == 0 {
		config.Version = job.Version + 1
	}
	if config.Version <= job.Version {
		h.httpError(w, "Config version must be greater than the current one", http.StatusConflict)
		return
	}
	if config.Constraint != nil {
		if err := config.Constraint.Validate(); err != nil {
			h.httpError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := h.store.UpdateJobVersion(ctx, nil, jobID, config.Version, config); err != nil {
		h.domainError(w, err)
		return
	}

	h.respondJson(w, http.StatusOK, api.UpdateJobConfigResponse{
		JobID:   jobID.String(),
		Version: config.Version,
	})
}

func taskConfigFromBody(body api.TaskConfigBody) *task.TaskConfig {
	config := &task.TaskConfig{
		Name:    body.Name,
		Image:   body.Image,
		Command: body.Command,
		Labels:  body.Labels,
		Version: body.Version,
	}
	for _, p := range body.Ports {
		config.Ports = append(config.Ports, task.PortConfig{Name: p.Name, Value: p.Value})
	}
	if hc := body.HealthCheck; hc != nil {
		config.HealthCheck = &task.HealthCheckConfig{
			Enabled:                hc.Enabled,
			InitialIntervalSecs:    hc.InitialIntervalSecs,
			IntervalSecs:           hc.IntervalSecs,
			MaxConsecutiveFailures: hc.MaxConsecutiveFailures,
		}
	}
	if body.Constraint != nil {
		config.Constraint = constraintFromBody(*body.Constraint)
	}
	return config
}

func constraintFromBody(body api.ConstraintBody) *task.Constraint {
	c := &task.Constraint{
		Kind:  task.ConstraintKind(body.Kind),
		Key:   body.Key,
		Value: body.Value,
	}
	for _, child := range body.Children {
		c.Children = append(c.Children, constraintFromBody(child))
	}
	return c
}
