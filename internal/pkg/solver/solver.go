// Package solver hands a frozen linear program to a solver and returns the
// primal solution and, on request, the row duals.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/logging"
	"github.com/ohowland/cgc_planner/internal/pkg/lp"
	"gonum.org/v1/gonum/mat"
	glp "gonum.org/v1/gonum/optimize/convex/lp"
)

// Status values reported in a Solution or a SolverFailure error.
const (
	Optimal    = "optimal"
	Infeasible = "infeasible"
	Unbounded  = "unbounded"
	Numerical  = "numerical"
	TooLarge   = "too_large"
)

// Solution is the result of a successful solve.
type Solution struct {
	Status    string
	Objective float64
	Primal    []float64 // one value per variable
	Duals     []float64 // d objective / d rhs per row, nil unless requested
}

// Solver solves a frozen linear program.
type Solver interface {
	Solve(ctx context.Context, p *lp.Problem) (*Solution, error)
}

// Defaults for the reference simplex.
const (
	DefaultTolerance = 1e-10
	DefaultMaxCells  = 1 << 24
)

// Simplex is the reference solver. It converts the problem to standard form
// and runs gonum's dense simplex, so it suits models up to a few thousand
// variables; larger models should be exported with WriteLP.
type Simplex struct {
	Tolerance float64
	Duals     bool
	MaxCells  int // limit on the standard-form matrix size
	Log       logr.Logger
}

// NewSimplex returns a Simplex with default settings.
func NewSimplex(duals bool, log logr.Logger) *Simplex {
	return &Simplex{
		Tolerance: DefaultTolerance,
		Duals:     duals,
		MaxCells:  DefaultMaxCells,
		Log:       log.WithName("solver"),
	}
}

// inequality is one row of G x <= h with its origin.
type inequality struct {
	row   int     // problem row, -1 for a bound
	sign  float64 // +1 for a <= row, -1 for the negated >= side
	terms []lp.Term
	h     float64
}

// general is min c·x s.t. G x <= h with x free.
type general struct {
	c    []float64
	ineq []inequality
}

func toGeneral(p *lp.Problem) (general, error) {
	n := p.NumVars()
	g := general{c: make([]float64, n)}
	for v := 0; v < n; v++ {
		g.c[v] = p.Cost(lp.Var(v))
	}

	for i := 0; i < p.NumRows(); i++ {
		r := p.Row(i)
		if len(r.Terms) == 0 {
			if (r.Sense == lp.LE && r.RHS < 0) || (r.Sense == lp.GE && r.RHS > 0) || (r.Sense == lp.EQ && r.RHS != 0) {
				return g, errs.Solver(Infeasible, fmt.Errorf("row %q has no terms and rhs %v", r.Name, r.RHS))
			}
			continue
		}
		neg := make([]lp.Term, len(r.Terms))
		for k, t := range r.Terms {
			neg[k] = lp.T(-t.Coef, t.Var)
		}
		switch r.Sense {
		case lp.LE:
			g.ineq = append(g.ineq, inequality{row: i, sign: 1, terms: r.Terms, h: r.RHS})
		case lp.GE:
			g.ineq = append(g.ineq, inequality{row: i, sign: -1, terms: neg, h: -r.RHS})
		case lp.EQ:
			g.ineq = append(g.ineq,
				inequality{row: i, sign: 1, terms: r.Terms, h: r.RHS},
				inequality{row: i, sign: -1, terms: neg, h: -r.RHS})
		}
	}

	for v := 0; v < n; v++ {
		b := p.Variable(lp.Var(v))
		g.ineq = append(g.ineq, inequality{row: -1, terms: []lp.Term{lp.T(-1, lp.Var(v))}, h: -b.Lower})
		if !math.IsInf(b.Upper, 1) {
			g.ineq = append(g.ineq, inequality{row: -1, terms: []lp.Term{lp.T(1, lp.Var(v))}, h: b.Upper})
		}
	}
	return g, nil
}

func (g general) matrix() (*mat.Dense, []float64) {
	m, n := len(g.ineq), len(g.c)
	G := mat.NewDense(m, n, nil)
	h := make([]float64, m)
	for i, in := range g.ineq {
		for _, t := range in.terms {
			G.Set(i, int(t.Var), G.At(i, int(t.Var))+t.Coef)
		}
		h[i] = in.h
	}
	return G, h
}

// Solve minimizes p. Failures are returned as SolverFailure errors carrying
// the status and the solver's message.
func (s *Simplex) Solve(ctx context.Context, p *lp.Problem) (*Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := p.NumVars()
	if n == 0 {
		return &Solution{Status: Optimal, Primal: []float64{}, Duals: s.zeroDuals(p)}, nil
	}

	g, err := toGeneral(p)
	if err != nil {
		return nil, err
	}
	m := len(g.ineq)
	if s.MaxCells > 0 && m*(2*n+m) > s.MaxCells {
		return nil, errs.Solver(TooLarge,
			fmt.Errorf("%d variables and %d inequalities exceed the dense simplex limit; export the model instead", n, m))
	}

	G, h := g.matrix()
	c, A, b := glp.Convert(g.c, G, h, nil, nil)
	s.Log.V(1).Info("solving", "variables", n, "inequalities", m)

	_, xt, err := glp.Simplex(c, A, b, s.Tolerance, nil)
	if err != nil {
		return nil, errs.Solver(status(err), err)
	}
	x := make([]float64, n)
	for v := range x {
		x[v] = xt[v] - xt[n+v]
	}
	sol := &Solution{Status: Optimal, Objective: p.Objective(x), Primal: x}

	if s.Duals {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		duals, dualObj, err := s.duals(p, g, G, h)
		if err != nil {
			return nil, err
		}
		if gap := math.Abs(dualObj - sol.Objective); gap > 1e-6*math.Max(1, math.Abs(sol.Objective)) {
			logging.Warn(s.Log, "duality gap above tolerance", "primal", sol.Objective, "dual", dualObj)
		}
		sol.Duals = duals
	}
	s.Log.Info("solved", "status", sol.Status, "objective", sol.Objective)
	return sol, nil
}

// duals solves the dual program
//
//	min h·μ  s.t.  Gᵀμ = −c,  μ ≥ 0
//
// which is already in standard form, and maps μ back to d objective / d rhs
// per problem row.
func (s *Simplex) duals(p *lp.Problem, g general, G *mat.Dense, h []float64) ([]float64, float64, error) {
	negc := make([]float64, len(g.c))
	for i, v := range g.c {
		negc[i] = -v
	}
	hc := make([]float64, len(h))
	copy(hc, h)
	_, mu, err := glp.Simplex(hc, G.T(), negc, s.Tolerance, nil)
	if err != nil {
		return nil, 0, errs.Solver(status(err), fmt.Errorf("dual: %w", err))
	}

	duals := make([]float64, p.NumRows())
	var obj float64
	for i, in := range g.ineq {
		obj -= h[i] * mu[i]
		if in.row >= 0 {
			duals[in.row] -= in.sign * mu[i]
		}
	}
	return duals, obj, nil
}

func (s *Simplex) zeroDuals(p *lp.Problem) []float64 {
	if !s.Duals {
		return nil
	}
	return make([]float64, p.NumRows())
}

func status(err error) string {
	switch {
	case errors.Is(err, glp.ErrInfeasible):
		return Infeasible
	case errors.Is(err, glp.ErrUnbounded):
		return Unbounded
	}
	return Numerical
}
