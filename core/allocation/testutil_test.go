package allocation

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/thrustmapper/core/model"
)

// coupleLayout returns four thrusters arranged to produce pure yaw couples.
func coupleLayout(t *testing.T) *Layout {
	t.Helper()
	l, err := BuildLayout(coupleThrusters())
	if err != nil {
		t.Fatalf("build layout: %v", err)
	}
	return l
}

func coupleThrusters() []model.Thruster {
	x := r3.Vec{X: 1}
	y := r3.Vec{Y: 1}
	return []model.Thruster{
		{Name: "t1", MotorID: 1, Position: r3.Vec{X: 0.3, Y: 0.3}, Direction: x, MinThrust: -5, MaxThrust: 5},
		{Name: "t2", MotorID: 2, Position: r3.Vec{X: -0.3, Y: -0.3}, Direction: x, MinThrust: -5, MaxThrust: 5},
		{Name: "t3", MotorID: 3, Position: r3.Vec{X: -0.3, Y: 0.3}, Direction: y, MinThrust: -5, MaxThrust: 5},
		{Name: "t4", MotorID: 4, Position: r3.Vec{X: 0.3, Y: -0.3}, Direction: y, MinThrust: -5, MaxThrust: 5},
	}
}

func yaw(tz float64) []float64 { return []float64{0, 0, 0, 0, 0, tz} }
