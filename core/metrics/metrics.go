package metrics

import (
	"time"

	"github.com/kilianp07/thrustmapper/core/model"
)

// AllocationResult represents one completed allocation cycle to be recorded.
type AllocationResult struct {
	Allocation model.Allocation
	// SolveTime covers every solve attempt of the cycle.
	SolveTime time.Duration
	Component string
}

// MetricsSink records allocation results for observability purposes.
type MetricsSink interface {
	RecordAllocation(res AllocationResult) error
}

// DerateEvent captures a failed solve followed by a de-rated retry.
type DerateEvent struct {
	CycleID string
	Attempt int
	Scale   float64
	Time    time.Time
}

// DerateRecorder records de-rating retries.
type DerateRecorder interface {
	RecordDerate(ev DerateEvent) error
}

// LayoutChangeEvent is a snapshot of the dropped thruster set.
type LayoutChangeEvent struct {
	Dropped []string
	Active  int
	Time    time.Time
}

// LayoutRecorder records fault reconfigurations.
type LayoutRecorder interface {
	RecordLayoutChange(ev LayoutChangeEvent) error
}

// ThrusterStatusEvent captures a thruster health transition.
type ThrusterStatusEvent struct {
	Name   string
	Alive  bool
	Reason string
	Time   time.Time
}

// ThrusterStatusRecorder records health transitions.
type ThrusterStatusRecorder interface {
	RecordThrusterStatus(ev ThrusterStatusEvent) error
}

// RejectionEvent records a wrench request that was not allocated.
// Reason is "rate_limited", "invalid" or "unachievable".
type RejectionEvent struct {
	Reason string
	Time   time.Time
}

// RejectionRecorder records rejected wrench requests.
type RejectionRecorder interface {
	RecordRejection(ev RejectionEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordAllocation(AllocationResult) error        { return nil }
func (NopSink) RecordDerate(DerateEvent) error                 { return nil }
func (NopSink) RecordLayoutChange(LayoutChangeEvent) error     { return nil }
func (NopSink) RecordThrusterStatus(ThrusterStatusEvent) error { return nil }
func (NopSink) RecordRejection(RejectionEvent) error           { return nil }
