package task

import (
	"time"

	"github.com/google/uuid"
)

// StateChange is an incoming actual-state event for one instance: the new
// state plus optional placement, health and termination payloads.
type StateChange struct {
	To State

	// Placement assignment, set when the task lands on a host.
	Host    string
	AgentID string
	Ports   map[string]uint32

	// Health report riding along with the transition, if any.
	Healthy *HealthState

	Message string
	Reason  string

	// Termination details, honored only when To is a non-SUCCEEDED
	// terminal state.
	Termination *TerminationStatus

	// ExpectedRevision guards against concurrent writers. Zero means the
	// caller holds the instance lock and skips the check.
	ExpectedRevision uint64

	Timestamp time.Time
}

// Apply validates the transition against the static graph and returns the
// updated runtime plus the single PodEvent to append. On error the input
// runtime is unchanged and no event is produced.
//
// Side effects on the returned copy: failureCount increments on FAILED/LOST,
// terminationStatus is set on every non-SUCCEEDED terminal entry, start and
// completion times are stamped on RUNNING and terminal entry respectively.
func Apply(runtime *RuntimeInfo, change StateChange) (*RuntimeInfo, *PodEvent, error) {
	if change.ExpectedRevision != 0 && change.ExpectedRevision != runtime.Revision {
		return nil, nil, &StaleRevisionError{
			TaskID:   runtime.TaskID,
			Expected: change.ExpectedRevision,
			Current:  runtime.Revision,
		}
	}

	if !CanTransition(runtime.State, change.To) {
		return nil, nil, &InvalidTransitionError{
			TaskID: runtime.TaskID,
			From:   runtime.State,
			To:     change.To,
		}
	}

	now := change.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	next := runtime.Clone()
	next.State = change.To
	next.Message = change.Message
	next.Reason = change.Reason
	next.UpdateTime = now
	next.Revision++

	if change.Host != "" {
		next.Host = change.Host
	}
	if change.AgentID != "" {
		next.AgentID = change.AgentID
	}
	if change.Ports != nil {
		next.Ports = make(map[string]uint32, len(change.Ports))
		for name, port := range change.Ports {
			next.Ports[name] = port
		}
	}
	if change.Healthy != nil && next.Healthy != HealthDisabled {
		next.Healthy = *change.Healthy
	}

	switch change.To {
	case StateRunning:
		t := now
		next.StartTime = &t
	case StateFailed, StateLost:
		t := now
		next.CompletionTime = &t
		next.FailureCount++
		next.TerminationStatus = terminationFor(change, TerminationFailed)
	case StateKilled:
		t := now
		next.CompletionTime = &t
		next.TerminationStatus = terminationFor(change, TerminationKilledOnRequest)
	case StateSucceeded:
		t := now
		next.CompletionTime = &t
	}

	event := &PodEvent{
		TaskID:               next.TaskID,
		RunID:                next.RunID,
		ActualState:          next.State,
		GoalState:            next.GoalState,
		Timestamp:            now,
		ConfigVersion:        next.ConfigVersion,
		DesiredConfigVersion: next.DesiredConfigVersion,
		AgentID:              next.AgentID,
		Hostname:             next.Host,
		Message:              change.Message,
		Reason:               change.Reason,
		PrevTaskID:           next.PrevTaskID,
		Healthy:              next.Healthy,
	}

	return next, event, nil
}

func terminationFor(change StateChange, fallback TerminationReason) *TerminationStatus {
	if change.Termination != nil {
		ts := *change.Termination
		return &ts
	}
	return &TerminationStatus{Reason: fallback}
}

// Relaunch advances the instance to a fresh run: RunID increments, the
// current task identity becomes the previous one, termination status is
// cleared and the config version catches up to the desired one. The caller
// must only invoke this after the current run has reached a terminal state.
// It returns the new runtime and the admission event for the new run.
func Relaunch(jobID uuid.UUID, runtime *RuntimeInfo, instanceID uint32, configVersion uint64, healthEnabled bool) (*RuntimeInfo, *PodEvent) {
	now := time.Now().UTC()

	next := runtime.Clone()
	next.PrevTaskID = runtime.TaskID
	next.RunID = runtime.RunID + 1
	next.TaskID = TaskID(jobID, instanceID, next.RunID)
	next.DesiredTaskID = next.TaskID
	next.State = StateInitialized
	next.GoalState = GoalRunning
	next.Host = ""
	next.AgentID = ""
	next.Ports = nil
	next.TerminationStatus = nil
	next.StartTime = nil
	next.CompletionTime = nil
	next.ConfigVersion = configVersion
	next.DesiredConfigVersion = configVersion
	next.Healthy = HealthDisabled
	if healthEnabled {
		next.Healthy = HealthUnknown
	}
	next.Message = ""
	next.Reason = ""
	next.UpdateTime = now
	next.Revision++

	event := &PodEvent{
		TaskID:               next.TaskID,
		RunID:                next.RunID,
		ActualState:          next.State,
		GoalState:            next.GoalState,
		Timestamp:            now,
		ConfigVersion:        next.ConfigVersion,
		DesiredConfigVersion: next.DesiredConfigVersion,
		PrevTaskID:           next.PrevTaskID,
		Healthy:              next.Healthy,
	}

	return next, event
}
