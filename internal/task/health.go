package task

// HealthReport is one raw observation from the downstream health checker.
// The mapping from reports to HealthState is a pluggable policy because the
// downstream payload format varies by execution layer.
type HealthReport struct {
	Passed  bool
	Message string
}

// HealthPolicy decides the next health sub-state from the current one and an
// incoming report. Policies must never transition out of HealthDisabled.
type HealthPolicy interface {
	Next(current HealthState, report HealthReport) HealthState
}

// ThresholdPolicy flips HEALTHY to UNHEALTHY after MaxConsecutiveFailures
// failed reports and back to HEALTHY on any passing report. It is the
// default policy.
type ThresholdPolicy struct {
	MaxConsecutiveFailures uint32

	failures uint32
}

// NewThresholdPolicy returns a policy that tolerates up to maxFailures
// consecutive failed checks before marking the task unhealthy. Zero means a
// single failure flips the state.
func NewThresholdPolicy(maxFailures uint32) *ThresholdPolicy {
	return &ThresholdPolicy{MaxConsecutiveFailures: maxFailures}
}

// Next implements HealthPolicy.
func (p *ThresholdPolicy) Next(current HealthState, report HealthReport) HealthState {
	if current == HealthDisabled {
		return HealthDisabled
	}
	if report.Passed {
		p.failures = 0
		return HealthHealthy
	}
	p.failures++
	if p.failures > p.MaxConsecutiveFailures {
		return HealthUnhealthy
	}
	if current == HealthUnknown {
		return HealthUnknown
	}
	return current
}
