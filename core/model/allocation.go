package model

import "time"

// Allocation is the outcome of one accepted wrench request.
type Allocation struct {
	CycleID   string          `json:"cycle_id"`
	Timestamp time.Time       `json:"timestamp"`
	Frame     string          `json:"frame"`
	Requested Wrench          `json:"requested"`
	Achieved  Wrench          `json:"achieved"`
	Error     Wrench          `json:"error"`
	Commands  []ThrustCommand `json:"commands"`
	// Scale is the de-rating factor applied to Requested before the
	// successful solve. It is 1 when no de-rating was needed.
	Scale    float64  `json:"scale"`
	Attempts int      `json:"attempts"`
	Dropped  []string `json:"dropped,omitempty"`
}

// Derated reports whether the wrench had to be scaled down.
func (a Allocation) Derated() bool { return a.Scale < 1 }

// Thrust returns the commanded thrust of the named thruster.
func (a Allocation) Thrust(name string) (float64, bool) {
	for _, c := range a.Commands {
		if c.Name == name {
			return c.Thrust, true
		}
	}
	return 0, false
}
