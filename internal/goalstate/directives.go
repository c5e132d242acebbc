package goalstate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskplane/internal/cache"
	"taskplane/internal/task"
)

// InstanceRange is a half-open [From, To) range of instance IDs.
type InstanceRange struct {
	From uint32 `json:"from"`
	To   uint32 `json:"to"`
}

// BulkResult partitions a bulk directive's outcome per instance. A failure
// on one instance never blocks or rolls back the others.
type BulkResult struct {
	Succeeded []uint32          `json:"succeeded"`
	Failed    map[uint32]string `json:"failed"`
}

// AdmitJob persists a new job and admits all its instances at INITIALIZED
// with goal RUNNING. Each admission appends the run's first ledger event.
func (d *Driver) AdmitJob(ctx context.Context, job *task.JobConfig) error {
	tx, err := d.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := d.store.CreateJob(ctx, tx, job); err != nil {
		return err
	}

	healthEnabled := job.Default != nil && job.Default.HealthCheck != nil && job.Default.HealthCheck.Enabled
	for i := uint32(0); i < job.InstanceCount; i++ {
		runtime := task.NewRuntime(job.JobID, i, job.Version, healthEnabled)
		info := &task.TaskInfo{
			JobID:      job.JobID,
			InstanceID: i,
			Runtime:    runtime,
			Config:     job.Default,
		}
		if err := d.store.CreateTask(ctx, tx, info); err != nil {
			return err
		}
		event := &task.PodEvent{
			TaskID:               runtime.TaskID,
			RunID:                runtime.RunID,
			ActualState:          runtime.State,
			GoalState:            runtime.GoalState,
			Timestamp:            runtime.UpdateTime,
			ConfigVersion:        runtime.ConfigVersion,
			DesiredConfigVersion: runtime.DesiredConfigVersion,
			Healthy:              runtime.Healthy,
		}
		if err := d.store.AppendEvent(ctx, tx, job.JobID, i, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for i := uint32(0); i < job.InstanceCount; i++ {
		d.track(job.JobID, i)
		d.poke(job.JobID, i)
	}
	return nil
}

// StartInstance records the intent to run the instance. Starting an
// already-running (or already-progressing) instance is a success with zero
// state change and zero emitted events.
func (d *Driver) StartInstance(ctx context.Context, jobID uuid.UUID, instanceID uint32) error {
	job, err := d.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	err = d.cache.WithLock(jobID, instanceID, func(v *cache.View) error {
		if err := d.loadLocked(ctx, v, jobID, instanceID); err != nil {
			return err
		}
		rt := v.Runtime

		if rt.GoalState == task.GoalRunning && !rt.State.IsTerminal() {
			// Already converging toward running.
			return nil
		}
		if rt.State == task.StateDeleted {
			return fmt.Errorf("instance %d: %w", instanceID, task.ErrInstanceNotFound)
		}

		next := rt.Clone()
		next.GoalState = task.GoalRunning
		next.DesiredConfigVersion = job.Version
		if rt.State.IsTerminal() {
			// Relaunch intent: target the next run. The reconciler
			// allocates it.
			next.DesiredTaskID = task.TaskID(jobID, instanceID, rt.RunID+1)
		}
		return d.recordIntent(ctx, v, jobID, instanceID, next, "start directive")
	})
	if err != nil {
		return err
	}

	d.poke(jobID, instanceID)
	return nil
}

// StopInstance records the intent to kill the instance. Stopping an
// already-stopped instance is a success with zero state change.
func (d *Driver) StopInstance(ctx context.Context, jobID uuid.UUID, instanceID uint32) error {
	err := d.cache.WithLock(jobID, instanceID, func(v *cache.View) error {
		if err := d.loadLocked(ctx, v, jobID, instanceID); err != nil {
			return err
		}
		rt := v.Runtime

		if rt.GoalState == task.GoalKilled || rt.State.IsTerminal() {
			// Already stopped or on its way down.
			return nil
		}

		next := rt.Clone()
		next.GoalState = task.GoalKilled
		next.DesiredTaskID = next.TaskID
		return d.recordIntent(ctx, v, jobID, instanceID, next, "stop directive")
	})
	if err != nil {
		return err
	}

	d.poke(jobID, instanceID)
	return nil
}

// RestartInstance records the intent to move the instance onto a fresh run
// under the job's current config version. The current run is killed first if
// it is still alive; convergence happens asynchronously.
func (d *Driver) RestartInstance(ctx context.Context, jobID uuid.UUID, instanceID uint32) error {
	job, err := d.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	err = d.cache.WithLock(jobID, instanceID, func(v *cache.View) error {
		if err := d.loadLocked(ctx, v, jobID, instanceID); err != nil {
			return err
		}
		rt := v.Runtime

		if rt.State == task.StateDeleted {
			return fmt.Errorf("instance %d: %w", instanceID, task.ErrInstanceNotFound)
		}

		next := rt.Clone()
		next.GoalState = task.GoalRunning
		next.DesiredTaskID = task.TaskID(jobID, instanceID, rt.RunID+1)
		next.DesiredConfigVersion = job.Version
		return d.recordIntent(ctx, v, jobID, instanceID, next, "restart directive")
	})
	if err != nil {
		return err
	}

	d.poke(jobID, instanceID)
	return nil
}

// RefreshInstance drops the cached snapshot, reloads the persisted one and
// forces a reconciliation from it.
func (d *Driver) RefreshInstance(ctx context.Context, jobID uuid.UUID, instanceID uint32) error {
	d.cache.Invalidate(jobID, instanceID)

	err := d.cache.WithLock(jobID, instanceID, func(v *cache.View) error {
		return d.loadLocked(ctx, v, jobID, instanceID)
	})
	if err != nil {
		return err
	}

	return d.Reconcile(ctx, jobID, instanceID)
}

// recordIntent persists a goal-vector mutation and its ledger event. The
// runtime's actual state is untouched; only the goal fields and the
// revision move.
func (d *Driver) recordIntent(ctx context.Context, v *cache.View, jobID uuid.UUID, instanceID uint32, next *task.RuntimeInfo, reason string) error {
	next.Revision++
	next.UpdateTime = time.Now().UTC()

	event := &task.PodEvent{
		TaskID:               next.TaskID,
		RunID:                next.RunID,
		ActualState:          next.State,
		GoalState:            next.GoalState,
		Timestamp:            next.UpdateTime,
		ConfigVersion:        next.ConfigVersion,
		DesiredConfigVersion: next.DesiredConfigVersion,
		AgentID:              next.AgentID,
		Hostname:             next.Host,
		Reason:               reason,
		PrevTaskID:           next.PrevTaskID,
		Healthy:              next.Healthy,
	}

	if err := d.commit(ctx, jobID, instanceID, next, event); err != nil {
		return err
	}
	v.Runtime = next
	return nil
}

// bulk fans one directive out over instance ranges, collecting per-instance
// outcomes independently. Only systemic failures (job missing) surface as an
// error.
func (d *Driver) bulk(ctx context.Context, jobID uuid.UUID, ranges []InstanceRange, apply func(context.Context, uuid.UUID, uint32) error) (*BulkResult, error) {
	job, err := d.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{Failed: make(map[uint32]string)}
	for _, r := range ranges {
		to := r.To
		if to > job.InstanceCount {
			to = job.InstanceCount
		}
		for i := r.From; i < to; i++ {
			if err := apply(ctx, jobID, i); err != nil {
				result.Failed[i] = err.Error()
				continue
			}
			result.Succeeded = append(result.Succeeded, i)
		}
	}
	return result, nil
}

// StartInstances starts every instance in the ranges. No-op starts count as
// succeeded, never as failed.
func (d *Driver) StartInstances(ctx context.Context, jobID uuid.UUID, ranges []InstanceRange) (*BulkResult, error) {
	return d.bulk(ctx, jobID, ranges, d.StartInstance)
}

// StopInstances stops every instance in the ranges.
func (d *Driver) StopInstances(ctx context.Context, jobID uuid.UUID, ranges []InstanceRange) (*BulkResult, error) {
	return d.bulk(ctx, jobID, ranges, d.StopInstance)
}

// RestartInstances restarts every instance in the ranges.
func (d *Driver) RestartInstances(ctx context.Context, jobID uuid.UUID, ranges []InstanceRange) (*BulkResult, error) {
	return d.bulk(ctx, jobID, ranges, d.RestartInstance)
}

// RefreshInstances reconciles every instance in the ranges from persisted
// state.
func (d *Driver) RefreshInstances(ctx context.Context, jobID uuid.UUID, ranges []InstanceRange) (*BulkResult, error) {
	return d.bulk(ctx, jobID, ranges, d.RefreshInstance)
}
