package allocation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/thrustmapper/core/model"
)

// directionTolerance bounds | ||direction|| - 1 | for a thruster to be accepted.
const directionTolerance = 1e-3

// Layout is the static geometric model of the thruster array. It owns the
// allocation matrix B (6×N, one column per thruster) and its pseudo-inverse.
// A Layout is immutable once built; column i always refers to Names()[i].
type Layout struct {
	thrusters []model.Thruster
	index     map[string]int
	b         *mat.Dense
	pinv      *mat.Dense
	nominal   Bounds
}

// BuildLayout validates the thruster descriptions and derives the allocation
// matrix, its pseudo-inverse and the nominal bounds. Column order follows the
// order of specs.
func BuildLayout(specs []model.Thruster) (*Layout, error) {
	if len(specs) == 0 {
		return nil, &ValidationError{Reason: "layout has no thrusters"}
	}
	n := len(specs)
	l := &Layout{
		thrusters: make([]model.Thruster, n),
		index:     make(map[string]int, n),
		b:         mat.NewDense(model.WrenchDim, n, nil),
		nominal:   Bounds{Min: make([]float64, n), Max: make([]float64, n)},
	}
	for i, t := range specs {
		if err := t.Validate(); err != nil {
			return nil, &ValidationError{Thruster: t.Name, Reason: err.Error()}
		}
		if _, dup := l.index[t.Name]; dup {
			return nil, &ValidationError{Thruster: t.Name, Reason: "duplicate thruster name"}
		}
		if !finiteVec(t.Position) || !finiteVec(t.Direction) {
			return nil, &ValidationError{Thruster: t.Name, Reason: "position and direction must be finite"}
		}
		if norm := r3.Norm(t.Direction); math.Abs(norm-1) > directionTolerance {
			return nil, &ValidationError{Thruster: t.Name, Reason: fmt.Sprintf("direction must be a unit vector (norm %.4f)", norm)}
		}
		l.thrusters[i] = t
		l.index[t.Name] = i
		l.b.SetCol(i, column(t.Position, t.Direction))
		l.nominal.Min[i] = t.MinThrust
		l.nominal.Max[i] = t.MaxThrust
	}
	pinv, err := pseudoInverse(l.b)
	if err != nil {
		return nil, err
	}
	l.pinv = pinv
	return l, nil
}

// column returns the wrench produced by a unit thrust: [d; p × d].
func column(position, direction r3.Vec) []float64 {
	torque := r3.Cross(position, direction)
	return []float64{direction.X, direction.Y, direction.Z, torque.X, torque.Y, torque.Z}
}

func finiteVec(v r3.Vec) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// pseudoInverse computes the minimum-norm generalized inverse through a thin
// SVD, dropping singular values below the usual rank threshold so that
// rank-deficient layouts are handled.
func pseudoInverse(b *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(b, mat.SVDThin); !ok {
		return nil, fmt.Errorf("allocation matrix: svd factorization failed")
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	r, c := b.Dims()
	inv := mat.NewDense(c, r, nil)
	if len(values) == 0 {
		return inv, nil
	}
	eps := math.Nextafter(1, 2) - 1
	cutoff := float64(max(r, c)) * values[0] * eps
	for i, s := range values {
		if s <= cutoff {
			continue
		}
		var outer mat.Dense
		outer.Outer(1/s, v.ColView(i), u.ColView(i))
		inv.Add(inv, &outer)
	}
	return inv, nil
}

// Len returns the number of thrusters.
func (l *Layout) Len() int { return len(l.thrusters) }

// Names returns the thruster names in column order.
func (l *Layout) Names() []string {
	names := make([]string, len(l.thrusters))
	for i, t := range l.thrusters {
		names[i] = t.Name
	}
	return names
}

// Thruster returns the description of column i.
func (l *Layout) Thruster(i int) model.Thruster { return l.thrusters[i] }

// Index returns the column of the named thruster.
func (l *Layout) Index(name string) (int, bool) {
	i, ok := l.index[name]
	return i, ok
}

// Matrix returns a copy of the allocation matrix.
func (l *Layout) Matrix() *mat.Dense { return mat.DenseCopyOf(l.b) }

// PseudoInverse returns a copy of the pseudo-inverse of the allocation matrix.
func (l *Layout) PseudoInverse() *mat.Dense { return mat.DenseCopyOf(l.pinv) }

// Flatten returns the allocation matrix in row-major order.
func (l *Layout) Flatten() []float64 {
	r, c := l.b.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, l.b.RawRowView(i)...)
	}
	return out
}

// NominalBounds returns a copy of the configured thrust bounds.
func (l *Layout) NominalBounds() Bounds { return l.nominal.Clone() }

// Apply returns the wrench B·u produced by the thrust vector u.
func (l *Layout) Apply(u []float64) model.Wrench {
	var w mat.VecDense
	w.MulVec(l.b, mat.NewVecDense(len(u), u))
	return model.WrenchFromVector(w.RawVector().Data)
}

// WarmStart returns the pseudo-inverse solution for the wrench, clipped to
// bounds.
func (l *Layout) WarmStart(wrench []float64, bounds Bounds) []float64 {
	var x mat.VecDense
	x.MulVec(l.pinv, mat.NewVecDense(len(wrench), wrench))
	u := append([]float64(nil), x.RawVector().Data...)
	bounds.Clip(u)
	return u
}

// Bounds holds per-thruster thrust limits, indexed by layout column.
type Bounds struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

// Clone returns a deep copy.
func (b Bounds) Clone() Bounds {
	return Bounds{Min: append([]float64(nil), b.Min...), Max: append([]float64(nil), b.Max...)}
}

// Clip clamps u into the bounds in place.
func (b Bounds) Clip(u []float64) {
	for i := range u {
		u[i] = math.Min(math.Max(u[i], b.Min[i]), b.Max[i])
	}
}

// Contains reports whether every component of u lies within the bounds.
func (b Bounds) Contains(u []float64) bool {
	for i, v := range u {
		if v < b.Min[i] || v > b.Max[i] {
			return false
		}
	}
	return true
}
