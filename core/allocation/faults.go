package allocation

import (
	"fmt"
	"sync"
)

// FaultState tracks the thrusters excluded from allocation and the bounds that
// result. Every reconfiguration recomputes the bounds from the nominal ones.
type FaultState struct {
	mu      sync.Mutex
	layout  *Layout
	probe   float64
	dropped []bool
	bounds  Bounds
}

// FaultSnapshot is a read-only copy of the fault state used by one cycle.
type FaultSnapshot struct {
	// Dropped lists the excluded thrusters in column order.
	Dropped []string `json:"dropped"`
	Bounds  Bounds   `json:"bounds"`
	mask    []bool
}

// IsDropped reports whether column i is excluded.
func (s FaultSnapshot) IsDropped(i int) bool { return i < len(s.mask) && s.mask[i] }

// NewFaultState returns a fault state with no dropped thrusters. Dropped
// thrusters are limited to ±minCommandable/2 so that near-zero probing
// commands can still reach them.
func NewFaultState(layout *Layout, minCommandable float64) *FaultState {
	return &FaultState{
		layout:  layout,
		probe:   minCommandable * 0.5,
		dropped: make([]bool, layout.Len()),
		bounds:  layout.NominalBounds(),
	}
}

// Reconfigure replaces the fault set. Unknown names reject the whole call and
// leave the previous state untouched. It reports whether the set changed;
// applying the current set again is a no-op.
func (f *FaultState) Reconfigure(dropped []string) (bool, error) {
	mask := make([]bool, f.layout.Len())
	for _, name := range dropped {
		i, ok := f.layout.Index(name)
		if !ok {
			return false, fmt.Errorf("%w: %q", ErrInvalidThrusterID, name)
		}
		mask[i] = true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if equalMask(mask, f.dropped) {
		return false, nil
	}
	bounds := f.layout.NominalBounds()
	for i, d := range mask {
		if d {
			bounds.Min[i] = -f.probe
			bounds.Max[i] = f.probe
		}
	}
	f.dropped = mask
	f.bounds = bounds
	return true, nil
}

// Snapshot returns a copy of the fault set and effective bounds.
func (f *FaultState) Snapshot() FaultSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := FaultSnapshot{
		Dropped: []string{},
		Bounds:  f.bounds.Clone(),
		mask:    append([]bool(nil), f.dropped...),
	}
	for i, d := range f.dropped {
		if d {
			snap.Dropped = append(snap.Dropped, f.layout.Thruster(i).Name)
		}
	}
	return snap
}

func equalMask(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
