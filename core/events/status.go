package events

import "time"

// ThrusterStatusEvent reports a change in a thruster's liveness.
// Reason is "reported" for explicit status messages and "stale" when the
// thruster stopped reporting.
type ThrusterStatusEvent struct {
	Name   string
	Alive  bool
	Reason string
	Time   time.Time
}
