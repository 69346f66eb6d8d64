package allocation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/thrustmapper/core/model"
)

func TestBuildLayout_Columns(t *testing.T) {
	l := coupleLayout(t)
	require.Equal(t, 4, l.Len())
	assert.Equal(t, []string{"t1", "t2", "t3", "t4"}, l.Names())

	b := l.Matrix()
	r, c := b.Dims()
	assert.Equal(t, model.WrenchDim, r)
	assert.Equal(t, 4, c)
	// t1: d=(1,0,0) at (0.3,0.3,0) gives p×d = (0,0,-0.3)
	want := []float64{1, 0, 0, 0, 0, -0.3}
	for i, v := range want {
		assert.InDelta(t, v, b.At(i, 0), 1e-12, "row %d", i)
	}
	assert.InDelta(t, 0.3, b.At(5, 1), 1e-12)
	assert.InDelta(t, -0.3, b.At(5, 2), 1e-12)
	assert.InDelta(t, 0.3, b.At(5, 3), 1e-12)
}

func TestLayout_FlattenRowMajor(t *testing.T) {
	l := coupleLayout(t)
	flat := l.Flatten()
	require.Len(t, flat, model.WrenchDim*4)
	b := l.Matrix()
	for i := 0; i < model.WrenchDim; i++ {
		for j := 0; j < 4; j++ {
			assert.Equal(t, b.At(i, j), flat[i*4+j])
		}
	}
}

func TestLayout_MatrixIsCopy(t *testing.T) {
	l := coupleLayout(t)
	b := l.Matrix()
	b.Set(0, 0, 42)
	assert.Equal(t, 1.0, l.Matrix().At(0, 0))
}

func TestLayout_PseudoInverse(t *testing.T) {
	l := coupleLayout(t)
	b := l.Matrix()
	p := l.PseudoInverse()
	r, c := p.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, model.WrenchDim, c)

	// Moore-Penrose: B·P·B = B, even though this B has rank 3.
	var bp, bpb mat.Dense
	bp.Mul(b, p)
	bpb.Mul(&bp, b)
	assert.True(t, mat.EqualApprox(&bpb, b, 1e-9))
}

func TestLayout_WarmStartClipped(t *testing.T) {
	l := coupleLayout(t)
	bounds := l.NominalBounds()
	u := l.WarmStart(yaw(100), bounds)
	assert.True(t, bounds.Contains(u))
	for _, v := range u {
		assert.InDelta(t, 5, math.Abs(v), 1e-12)
	}

	u = l.WarmStart(yaw(1), bounds)
	assert.InDelta(t, -1/1.2, u[0], 1e-9)
	assert.InDelta(t, 1/1.2, u[1], 1e-9)
}

func TestLayout_Apply(t *testing.T) {
	l := coupleLayout(t)
	w := l.Apply([]float64{-1, 1, -1, 1})
	assert.InDelta(t, 0, r3.Norm(w.Force), 1e-12)
	assert.InDelta(t, 1.2, w.Torque.Z, 1e-12)
}

func TestBuildLayout_Validation(t *testing.T) {
	good := coupleThrusters()
	cases := []struct {
		name   string
		mutate func([]model.Thruster) []model.Thruster
	}{
		{"empty", func([]model.Thruster) []model.Thruster { return nil }},
		{"duplicate", func(ts []model.Thruster) []model.Thruster { ts[1].Name = "t1"; return ts }},
		{"bounds", func(ts []model.Thruster) []model.Thruster { ts[0].MinThrust = 6; return ts }},
		{"nan bound", func(ts []model.Thruster) []model.Thruster { ts[0].MaxThrust = math.NaN(); return ts }},
		{"not unit", func(ts []model.Thruster) []model.Thruster { ts[2].Direction = r3.Vec{Y: 2}; return ts }},
		{"zero direction", func(ts []model.Thruster) []model.Thruster { ts[2].Direction = r3.Vec{}; return ts }},
		{"nan position", func(ts []model.Thruster) []model.Thruster { ts[3].Position.X = math.NaN(); return ts }},
		{"missing name", func(ts []model.Thruster) []model.Thruster { ts[3].Name = ""; return ts }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			specs := tc.mutate(append([]model.Thruster(nil), good...))
			_, err := BuildLayout(specs)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
		})
	}
}

func TestBuildLayout_AcceptsNearUnitDirection(t *testing.T) {
	specs := coupleThrusters()
	specs[0].Direction = r3.Vec{X: 1.0005}
	_, err := BuildLayout(specs)
	assert.NoError(t, err)
}

func TestBounds_Clip(t *testing.T) {
	b := Bounds{Min: []float64{-1, 0}, Max: []float64{1, 2}}
	u := []float64{-3, 5}
	b.Clip(u)
	assert.Equal(t, []float64{-1, 2}, u)
	assert.True(t, b.Contains(u))
	assert.False(t, b.Contains([]float64{0, 3}))
}
