package events

import (
	"time"

	"github.com/kilianp07/thrustmapper/core/model"
)

// AllocationEvent is published after each accepted wrench request.
type AllocationEvent struct {
	Allocation model.Allocation
	Duration   time.Duration
}

// DerateEvent is published for each failed solve that triggers a retry with
// a smaller wrench. Scale is the factor used by the next attempt.
type DerateEvent struct {
	CycleID string
	Attempt int
	Scale   float64
}

// LayoutEvent is emitted when the dropped thruster set changes.
type LayoutEvent struct {
	Dropped []string
	Time    time.Time
}
