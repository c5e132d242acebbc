package goalstate

import (
	"context"
	"time"

	"github.com/google/uuid"

	"taskplane/internal/cache"
	"taskplane/internal/executor"
	"taskplane/internal/task"
)

// Reconcile computes and issues the minimal action that moves the instance's
// actual state toward its goal state. It is idempotent: re-invoking with
// unchanged state produces no new action and no new event.
func (d *Driver) Reconcile(ctx context.Context, jobID uuid.UUID, instanceID uint32) error {
	return d.cache.WithLock(jobID, instanceID, func(v *cache.View) error {
		if err := d.loadLocked(ctx, v, jobID, instanceID); err != nil {
			return err
		}
		return d.reconcileLocked(ctx, v, jobID, instanceID)
	})
}

func (d *Driver) reconcileLocked(ctx context.Context, v *cache.View, jobID uuid.UUID, instanceID uint32) error {
	rt := v.Runtime

	// Config drift while alive turns into a restart intent: the new run
	// picks up the desired version once the current one is brought down.
	if rt.NeedsRefresh() && rt.DesiredTaskID == rt.TaskID {
		next := rt.Clone()
		next.DesiredTaskID = task.TaskID(jobID, instanceID, rt.RunID+1)
		if err := d.recordIntent(ctx, v, jobID, instanceID, next, "config drift"); err != nil {
			return err
		}
		rt = v.Runtime
	}

	switch {
	case rt.GoalState == task.GoalKilled:
		if rt.State.IsTerminal() {
			return nil // converged
		}
		return d.killLocked(ctx, v, jobID, instanceID, task.TerminationKilledOnRequest)

	case rt.DesiredTaskID != "" && rt.DesiredTaskID != rt.TaskID:
		// A newer run is wanted. Bring the current one down first, then
		// allocate the new run.
		if !rt.State.IsTerminal() {
			return d.killLocked(ctx, v, jobID, instanceID, task.TerminationKilledOnRequest)
		}
		if rt.State == task.StateDeleted {
			return nil
		}
		return d.relaunchLocked(ctx, v, jobID, instanceID)

	case rt.GoalState == task.GoalRunning:
		if rt.State.IsTerminal() {
			// Finished runs stay put; only an explicit directive
			// allocates a new run.
			return nil
		}
		return d.advanceLocked(ctx, v, jobID, instanceID)
	}

	return nil
}

// applyLocked runs one transition through the state machine and commits the
// write-ahead pair. The cache view is updated on success.
func (d *Driver) applyLocked(ctx context.Context, v *cache.View, jobID uuid.UUID, instanceID uint32, change task.StateChange) error {
	next, event, err := task.Apply(v.Runtime, change)
	if err != nil {
		return err
	}
	if err := d.commit(ctx, jobID, instanceID, next, event); err != nil {
		return err
	}
	v.Runtime = next
	return nil
}

// advanceLocked pushes a pre-running instance through the launch pipeline:
// admission to the ready queue, placement, then launch via the execution
// layer. STARTING and RUNNING are reported back by the execution layer, not
// assumed here.
func (d *Driver) advanceLocked(ctx context.Context, v *cache.View, jobID uuid.UUID, instanceID uint32) error {
	for _, step := range []struct {
		from task.State
		to   task.State
	}{
		{task.StateInitialized, task.StatePending},
		{task.StatePending, task.StateReady},
		{task.StateReady, task.StatePlacing},
	} {
		if v.Runtime.State != step.from {
			continue
		}
		if err := d.applyLocked(ctx, v, jobID, instanceID, task.StateChange{To: step.to}); err != nil {
			return err
		}
	}

	if v.Runtime.State != task.StatePlacing {
		// LAUNCHING and beyond are progressing on their own; nothing to
		// correct.
		return nil
	}

	d.countAction(ctx, "launch")
	actionCtx, cancel := context.WithTimeout(ctx, d.config.ActionTimeout)
	placement, err := d.exec.Launch(actionCtx, executor.LaunchRequest{
		TaskID:     v.Runtime.TaskID,
		JobID:      jobID,
		InstanceID: instanceID,
		RunID:      v.Runtime.RunID,
		Config:     v.Config,
	})
	cancel()
	if err != nil {
		// Record the failure, fall back to READY and let the next sweep
		// retry. The goal state is left untouched.
		d.countFailure(ctx, "launch")
		d.recordActionFailure(ctx, v.Runtime, jobID, instanceID, "launch failed", err)
		return d.applyLocked(ctx, v, jobID, instanceID, task.StateChange{
			To:     task.StateReady,
			Reason: "placement retry",
		})
	}

	if err := d.applyLocked(ctx, v, jobID, instanceID, task.StateChange{
		To:      task.StatePlaced,
		Host:    placement.Hostname,
		AgentID: placement.AgentID,
		Ports:   placement.Ports,
	}); err != nil {
		return err
	}
	if err := d.applyLocked(ctx, v, jobID, instanceID, task.StateChange{To: task.StateLaunching}); err != nil {
		return err
	}
	return d.applyLocked(ctx, v, jobID, instanceID, task.StateChange{To: task.StateLaunched})
}

// killLocked moves the instance into KILLING and delivers the kill signal.
// Runs that never reached the execution layer are marked KILLED directly.
func (d *Driver) killLocked(ctx context.Context, v *cache.View, jobID uuid.UUID, instanceID uint32, reason task.TerminationReason) error {
	rt := v.Runtime
	launched := rt.State.IsRunningFamily()

	if rt.State == task.StatePreempting {
		reason = task.TerminationPreempted
	}

	if rt.State != task.StateKilling {
		if err := d.applyLocked(ctx, v, jobID, instanceID, task.StateChange{
			To:     task.StateKilling,
			Reason: string(reason),
		}); err != nil {
			return err
		}
	}

	if launched {
		d.countAction(ctx, "kill")
		actionCtx, cancel := context.WithTimeout(ctx, d.config.ActionTimeout)
		err := d.exec.Kill(actionCtx, rt.TaskID)
		cancel()
		if err != nil {
			// Stay in KILLING; the next sweep retries. The goal state is
			// not flipped back on failure.
			d.countFailure(ctx, "kill")
			d.recordActionFailure(ctx, v.Runtime, jobID, instanceID, "kill failed", err)
			return nil
		}
	}

	return d.applyLocked(ctx, v, jobID, instanceID, task.StateChange{
		To:          task.StateKilled,
		Reason:      string(reason),
		Termination: &task.TerminationStatus{Reason: reason},
	})
}

// relaunchLocked allocates the next run for a terminal instance. The new run
// is stamped with the job's config version current at the most recent
// start/restart directive.
func (d *Driver) relaunchLocked(ctx context.Context, v *cache.View, jobID uuid.UUID, instanceID uint32) error {
	job, err := d.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	prevTaskID := v.Runtime.TaskID
	healthEnabled := job.Default != nil && job.Default.HealthCheck != nil && job.Default.HealthCheck.Enabled
	next, event := task.Relaunch(jobID, v.Runtime, instanceID, v.Runtime.DesiredConfigVersion, healthEnabled)

	if err := d.commit(ctx, jobID, instanceID, next, event); err != nil {
		return err
	}
	v.Runtime = next
	v.Config = job.Default
	d.dropHealthPolicy(prevTaskID)
	d.countAction(ctx, "relaunch")

	// Start the new run's pipeline right away.
	return d.advanceLocked(ctx, v, jobID, instanceID)
}

// recordActionFailure appends a ledger event describing a failed
// execution-layer action without touching the runtime snapshot. The event
// rides in its own transaction; losing it on a crash is acceptable since the
// action itself will be retried.
func (d *Driver) recordActionFailure(ctx context.Context, rt *task.RuntimeInfo, jobID uuid.UUID, instanceID uint32, message string, cause error) {
	event := &task.PodEvent{
		TaskID:               rt.TaskID,
		RunID:                rt.RunID,
		ActualState:          rt.State,
		GoalState:            rt.GoalState,
		Timestamp:            time.Now().UTC(),
		ConfigVersion:        rt.ConfigVersion,
		DesiredConfigVersion: rt.DesiredConfigVersion,
		AgentID:              rt.AgentID,
		Hostname:             rt.Host,
		Message:              cause.Error(),
		Reason:               message,
		PrevTaskID:           rt.PrevTaskID,
		Healthy:              rt.Healthy,
	}
	if err := d.store.AppendEvent(ctx, nil, jobID, instanceID, event); err != nil {
		d.logger.Error("failed to record action failure",
			"job_id", jobID, "instance_id", instanceID, "error", err)
	}
}
