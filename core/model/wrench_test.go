package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestWrenchVectorRoundTrip(t *testing.T) {
	v := []float64{1, 2, 3, 4, 5, 6}
	w := WrenchFromVector(v)
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, w.Force)
	assert.Equal(t, r3.Vec{X: 4, Y: 5, Z: 6}, w.Torque)
	assert.Equal(t, v, w.Vector())
}

func TestWrenchShortVector(t *testing.T) {
	assert.Equal(t, Wrench{}, WrenchFromVector([]float64{1, 2}))
}

func TestWrenchArithmetic(t *testing.T) {
	w := WrenchFromVector([]float64{1, 0, 0, 0, 0, 2})
	half := w.Scale(0.5)
	assert.InDelta(t, 0.5, half.Force.X, 1e-12)
	assert.InDelta(t, 1.0, half.Torque.Z, 1e-12)
	diff := w.Sub(half)
	assert.Equal(t, half, diff)
	assert.InDelta(t, math.Sqrt(5), w.Norm(), 1e-12)
}

func TestWrenchIsFinite(t *testing.T) {
	assert.True(t, Wrench{}.IsFinite())
	assert.False(t, WrenchFromVector([]float64{math.NaN(), 0, 0, 0, 0, 0}).IsFinite())
	assert.False(t, WrenchFromVector([]float64{0, 0, 0, 0, math.Inf(-1), 0}).IsFinite())
}

func TestThrusterValidate(t *testing.T) {
	assert.NoError(t, Thruster{Name: "FLH", MinThrust: -90, MaxThrust: 90}.Validate())
	assert.Error(t, Thruster{MinThrust: -1, MaxThrust: 1}.Validate())
	assert.Error(t, Thruster{Name: "x", MinThrust: 2, MaxThrust: 1}.Validate())
}
