package goalstate

import (
	"context"
	"fmt"
	"time"

	"taskplane/internal/cache"
	"taskplane/internal/task"
)

// StateReport is what the execution layer sends back when a run's observed
// state changes.
type StateReport struct {
	TaskID   string
	State    task.State
	Message  string
	Reason   string
	ExitCode *int
	Signal   string
}

// ReportStateChange applies an execution-layer state report through the
// state machine. Reports for a run that is no longer the instance's current
// run are ignored: the ledger already holds that run's terminal history.
func (d *Driver) ReportStateChange(ctx context.Context, report StateReport) error {
	jobID, instanceID, _, err := task.ParseTaskID(report.TaskID)
	if err != nil {
		return err
	}

	err = d.cache.WithLock(jobID, instanceID, func(v *cache.View) error {
		if err := d.loadLocked(ctx, v, jobID, instanceID); err != nil {
			return err
		}
		if v.Runtime.TaskID != report.TaskID {
			d.logger.Warn("dropping state report for stale run",
				"job_id", jobID, "instance_id", instanceID,
				"reported", report.TaskID, "current", v.Runtime.TaskID)
			return nil
		}

		change := task.StateChange{
			To:        report.State,
			Message:   report.Message,
			Reason:    report.Reason,
			Timestamp: time.Now().UTC(),
		}
		if report.State == task.StateFailed || report.State == task.StateLost {
			change.Termination = &task.TerminationStatus{
				Reason:   task.TerminationFailed,
				ExitCode: report.ExitCode,
				Signal:   report.Signal,
			}
		}
		return d.applyLocked(ctx, v, jobID, instanceID, change)
	})
	if err != nil {
		return err
	}

	d.poke(jobID, instanceID)
	return nil
}

// ReportHealth feeds one health-check observation through the instance's
// health policy. A changed health sub-state is recorded in the ledger but
// never drives an actual-state transition.
func (d *Driver) ReportHealth(ctx context.Context, taskID string, report task.HealthReport) error {
	jobID, instanceID, _, err := task.ParseTaskID(taskID)
	if err != nil {
		return err
	}

	return d.cache.WithLock(jobID, instanceID, func(v *cache.View) error {
		if err := d.loadLocked(ctx, v, jobID, instanceID); err != nil {
			return err
		}
		rt := v.Runtime
		if rt.TaskID != taskID {
			return fmt.Errorf("health report for stale run %s: %w", taskID, task.ErrInstanceNotFound)
		}
		if rt.Healthy == task.HealthDisabled {
			return nil
		}

		policy := d.healthPolicyFor(taskID, v.Config)
		nextHealth := policy.Next(rt.Healthy, report)
		if nextHealth == rt.Healthy {
			return nil
		}

		next := rt.Clone()
		next.Healthy = nextHealth
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
			Message:              report.Message,
			Reason:               "health check",
			PrevTaskID:           next.PrevTaskID,
			Healthy:              nextHealth,
		}
		if err := d.commit(ctx, jobID, instanceID, next, event); err != nil {
			return err
		}
		v.Runtime = next
		return nil
	})
}
