package model

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// WrenchDim is the number of components of a wrench (force then torque).
const WrenchDim = 6

// Wrench is a generalized force applied to a rigid body.
type Wrench struct {
	Force  r3.Vec `json:"force"`
	Torque r3.Vec `json:"torque"`
}

// WrenchFromVector builds a wrench from [Fx Fy Fz Tx Ty Tz].
func WrenchFromVector(v []float64) Wrench {
	var w Wrench
	if len(v) < WrenchDim {
		return w
	}
	w.Force = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	w.Torque = r3.Vec{X: v[3], Y: v[4], Z: v[5]}
	return w
}

// Vector returns the wrench as [Fx Fy Fz Tx Ty Tz].
func (w Wrench) Vector() []float64 {
	return []float64{w.Force.X, w.Force.Y, w.Force.Z, w.Torque.X, w.Torque.Y, w.Torque.Z}
}

// Scale multiplies every component by f.
func (w Wrench) Scale(f float64) Wrench {
	return Wrench{Force: r3.Scale(f, w.Force), Torque: r3.Scale(f, w.Torque)}
}

// Sub returns w - o.
func (w Wrench) Sub(o Wrench) Wrench {
	return Wrench{Force: r3.Sub(w.Force, o.Force), Torque: r3.Sub(w.Torque, o.Torque)}
}

// Norm returns the Euclidean norm of the six components.
func (w Wrench) Norm() float64 {
	f := r3.Norm(w.Force)
	t := r3.Norm(w.Torque)
	return math.Hypot(f, t)
}

// IsFinite reports whether every component is a finite number.
func (w Wrench) IsFinite() bool {
	for _, c := range w.Vector() {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// WrenchRequest is a wrench demand delivered by the guidance layer.
type WrenchRequest struct {
	Wrench
	Frame     string
	Timestamp time.Time
}
