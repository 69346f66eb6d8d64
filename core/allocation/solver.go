package allocation

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const (
	armijoSlope    = 1e-4
	maxLineSearch  = 40
	activeEpsilon  = 1e-8
	defaultMaxIter = 100
)

// Solver minimizes the Tikhonov-regularized least-squares cost
//
//	J(u) = ||B·u - w||² + uᵀ·R·u,  R = Regularization·I
//
// subject to elementwise bounds on u, using a projected Newton method with
// an Armijo search along the projection arc. Identical inputs always yield
// identical outputs.
type Solver struct {
	Regularization float64
	// Tolerance applies to the infinity norm of the projected gradient,
	// scaled by max(1, |w|∞).
	Tolerance     float64
	MaxIterations int
	// FeasibilityTolerance, when positive, fails converged solutions whose
	// residual ||B·u - w|| exceeds FeasibilityTolerance·max(1, ||w||).
	FeasibilityTolerance float64
}

// NewSolver builds a solver from the allocation settings.
func NewSolver(cfg Config) Solver {
	return Solver{
		Regularization:       cfg.Regularization,
		Tolerance:            cfg.Tolerance,
		MaxIterations:        cfg.MaxIterations,
		FeasibilityTolerance: cfg.FeasibilityTolerance,
	}
}

// Solution is the outcome of a single solve.
type Solution struct {
	Thrust     []float64
	Success    bool
	Iterations int
	Cost       float64
	Residual   float64
}

// Solve minimizes J starting from warm clipped to bounds. Failure to converge
// is reported through Solution.Success.
func (s Solver) Solve(wrench []float64, b mat.Matrix, bounds Bounds, warm []float64) Solution {
	obj := newObjective(b, wrench, s.Regularization)
	p := obj.problem()
	n := obj.n

	u := append([]float64(nil), warm...)
	bounds.Clip(u)
	hess := mat.NewSymDense(n, nil)
	p.Hess(hess, u)

	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}
	tol := s.Tolerance * math.Max(1, floats.Norm(wrench, math.Inf(1)))
	g := make([]float64, n)
	d := make([]float64, n)
	trial := make([]float64, n)
	f := p.Func(u)

	sol := Solution{Thrust: u}
	for it := 0; ; it++ {
		p.Grad(g, u)
		pg := projectedGradientNorm(u, g, bounds)
		if pg <= tol {
			sol.Success = true
			break
		}
		if it == maxIter {
			break
		}
		newtonDirection(d, u, g, hess, bounds, math.Min(pg, activeEpsilon))
		ft, ok := armijoSearch(p.Func, u, d, g, f, bounds, trial)
		if !ok {
			break
		}
		copy(u, trial)
		f = ft
		sol.Iterations = it + 1
	}

	sol.Cost = f
	res := obj.residual(u)
	sol.Residual = mat.Norm(res, 2)
	if sol.Success && s.FeasibilityTolerance > 0 {
		limit := s.FeasibilityTolerance * math.Max(1, floats.Norm(wrench, 2))
		sol.Success = sol.Residual <= limit
	}
	return sol
}

// projectedGradientNorm returns |u - P(u - g)|∞, which is zero exactly at a
// KKT point of the bound-constrained problem.
func projectedGradientNorm(u, g []float64, b Bounds) float64 {
	var m float64
	for i := range u {
		p := math.Min(math.Max(u[i]-g[i], b.Min[i]), b.Max[i])
		m = math.Max(m, math.Abs(u[i]-p))
	}
	return m
}

// newtonDirection fills d with a Newton step on the free variables and a
// diagonally scaled gradient step on the eps-active ones.
func newtonDirection(d, u, g []float64, hess *mat.SymDense, b Bounds, eps float64) {
	free := make([]int, 0, len(u))
	for i := range u {
		atLower := u[i] <= b.Min[i]+eps && g[i] > 0
		atUpper := u[i] >= b.Max[i]-eps && g[i] < 0
		if atLower || atUpper {
			d[i] = -g[i] / hess.At(i, i)
			continue
		}
		free = append(free, i)
	}
	if len(free) == 0 {
		return
	}

	hf := mat.NewSymDense(len(free), nil)
	rhs := mat.NewVecDense(len(free), nil)
	for a, i := range free {
		rhs.SetVec(a, -g[i])
		for c := a; c < len(free); c++ {
			hf.SetSym(a, c, hess.At(i, free[c]))
		}
	}
	var chol mat.Cholesky
	var x mat.VecDense
	if chol.Factorize(hf) && chol.SolveVecTo(&x, rhs) == nil {
		for a, i := range free {
			d[i] = x.AtVec(a)
		}
		return
	}
	for _, i := range free {
		d[i] = -g[i] / hess.At(i, i)
	}
}

// armijoSearch backtracks along the projection arc u(t) = P(u + t·d) until the
// sufficient decrease condition holds. trial receives the accepted point.
func armijoSearch(fn func([]float64) float64, u, d, g []float64, f float64, b Bounds, trial []float64) (float64, bool) {
	t := 1.0
	for k := 0; k < maxLineSearch; k++ {
		for i := range u {
			trial[i] = u[i] + t*d[i]
		}
		b.Clip(trial)
		var slope float64
		for i := range u {
			slope += g[i] * (trial[i] - u[i])
		}
		if slope < 0 {
			if ft := fn(trial); ft <= f+armijoSlope*slope {
				return ft, true
			}
		}
		t *= 0.5
	}
	return f, false
}

// objective holds the quadratic cost in a form shared by Func, Grad and Hess.
type objective struct {
	n   int
	b   mat.Matrix
	w   *mat.VecDense
	r   float64
	btb *mat.SymDense
	btw *mat.VecDense
}

func newObjective(b mat.Matrix, wrench []float64, r float64) *objective {
	_, n := b.Dims()
	btb := mat.NewSymDense(n, nil)
	btb.SymOuterK(1, b.T())
	w := mat.NewVecDense(len(wrench), append([]float64(nil), wrench...))
	btw := mat.NewVecDense(n, nil)
	btw.MulVec(b.T(), w)
	return &objective{n: n, b: b, w: w, r: r, btb: btb, btw: btw}
}

func (o *objective) residual(u []float64) *mat.VecDense {
	res := mat.NewVecDense(o.w.Len(), nil)
	res.MulVec(o.b, mat.NewVecDense(len(u), u))
	res.SubVec(res, o.w)
	return res
}

// Func evaluates J(u).
func (o *objective) Func(u []float64) float64 {
	res := o.residual(u)
	return mat.Dot(res, res) + o.r*floats.Dot(u, u)
}

// Grad evaluates ∇J(u) = 2·Bᵀ(B·u - w) + 2·R·u.
func (o *objective) Grad(grad, u []float64) {
	var hu mat.VecDense
	hu.MulVec(o.btb, mat.NewVecDense(len(u), u))
	for i := range grad {
		grad[i] = 2*(hu.AtVec(i)-o.btw.AtVec(i)) + 2*o.r*u[i]
	}
}

// Hess evaluates ∇²J = 2·(BᵀB + R), which does not depend on u.
func (o *objective) Hess(hess *mat.SymDense, _ []float64) {
	for i := 0; i < o.n; i++ {
		for j := i; j < o.n; j++ {
			v := 2 * o.btb.At(i, j)
			if i == j {
				v += 2 * o.r
			}
			hess.SetSym(i, j, v)
		}
	}
}

func (o *objective) problem() optimize.Problem {
	return optimize.Problem{Func: o.Func, Grad: o.Grad, Hess: o.Hess}
}
