// Package task contains the lifecycle data model and the state machine that
// validates and applies transitions for a single task instance.
package task

// State is the actual lifecycle state of one run of a task instance.
// Exactly one State holds at any instant per run.
type State string

const (
	StateInitialized State = "INITIALIZED"
	StatePending     State = "PENDING"
	StateReady       State = "READY"
	StatePlacing     State = "PLACING"
	StatePlaced      State = "PLACED"
	StateLaunching   State = "LAUNCHING"
	StateLaunched    State = "LAUNCHED"
	StateStarting    State = "STARTING"
	StateRunning     State = "RUNNING"
	StateSucceeded   State = "SUCCEEDED"
	StateFailed      State = "FAILED"
	StateLost        State = "LOST"
	StatePreempting  State = "PREEMPTING"
	StateKilling     State = "KILLING"
	StateKilled      State = "KILLED"
	StateDeleted     State = "DELETED"
)

// GoalState is the desired target state of an instance. It is set only by
// external directives (start/stop) or the reconciler, never by the state
// machine itself.
type GoalState string

const (
	GoalRunning GoalState = "RUNNING"
	GoalKilled  GoalState = "KILLED"
	GoalDeleted GoalState = "DELETED"
)

// HealthState is the independent health sub-state of a run. Once health
// checking is disabled it never transitions out of HealthDisabled.
type HealthState string

const (
	HealthDisabled  HealthState = "DISABLED"
	HealthUnknown   HealthState = "HEALTH_UNKNOWN"
	HealthHealthy   HealthState = "HEALTHY"
	HealthUnhealthy HealthState = "UNHEALTHY"
)

// transitionGraph is the static set of legal actual-state edges. A transition
// not listed here is rejected by Apply.
var transitionGraph = map[State][]State{
	StateInitialized: {StatePending, StateKilling},
	StatePending:     {StateReady, StateKilling},
	StateReady:       {StatePlacing, StateKilling},
	// Placement may be retried, sending the task back to READY.
	StatePlacing:   {StatePlaced, StateReady, StateKilling},
	StatePlaced:    {StateLaunching, StateKilling},
	StateLaunching: {StateLaunched, StateLost, StateKilling},
	StateLaunched:  {StateStarting, StateLost, StateKilling},
	StateStarting:  {StateRunning, StateFailed, StateLost, StateKilling},
	StateRunning:   {StateSucceeded, StateFailed, StateLost, StatePreempting, StateKilling},
	StatePreempting: {StateKilling},
	StateKilling:    {StateKilled, StateLost},
	// Terminal states accept no further transitions except DELETED.
	StateSucceeded: {StateDeleted},
	StateFailed:    {StateDeleted},
	StateLost:      {StateDeleted},
	StateKilled:    {StateDeleted},
	StateDeleted:   {},
}

// IsTerminal reports whether s accepts no further lifecycle progress.
// DELETED is reachable from any terminal state but is itself final.
func (s State) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateLost, StateKilled, StateDeleted:
		return true
	}
	return false
}

// IsRunningFamily reports whether the task is launched or beyond and not yet
// terminal, i.e. the execution layer may hold a live process for it.
func (s State) IsRunningFamily() bool {
	switch s {
	case StateLaunching, StateLaunched, StateStarting, StateRunning, StatePreempting, StateKilling:
		return true
	}
	return false
}

// CanTransition reports whether the edge from -> to is in the transition graph.
func CanTransition(from, to State) bool {
	for _, next := range transitionGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}
