package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Thruster describes a single actuator of the array. Position and Direction
// are expressed in the vehicle frame; bounds are in Newtons.
type Thruster struct {
	Name      string
	MotorID   int
	Position  r3.Vec
	Direction r3.Vec
	MinThrust float64
	MaxThrust float64
}

// Validate checks the thrust bounds. Direction is checked by the layout
// builder since its tolerance is a layout concern.
func (t Thruster) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("thruster name is required")
	}
	if math.IsNaN(t.MinThrust) || math.IsNaN(t.MaxThrust) || t.MinThrust > t.MaxThrust {
		return fmt.Errorf("thruster %s: invalid thrust bounds [%v, %v]", t.Name, t.MinThrust, t.MaxThrust)
	}
	return nil
}

// ThrustCommand is the thrust ordered for one thruster during a cycle.
type ThrustCommand struct {
	Name   string  `json:"name"`
	Thrust float64 `json:"thrust"`
}
