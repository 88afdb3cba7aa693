package solver

import (
	"context"

	"github.com/ohowland/cgc_planner/internal/pkg/lp"
)

// Serial lets at most one solve run at a time through the wrapped Solver.
// Waiting callers block until the running solve ends or their context is done.
type Serial struct {
	solver Solver
	sem    chan struct{}
}

// NewSerial wraps s.
func NewSerial(s Solver) *Serial {
	return &Serial{solver: s, sem: make(chan struct{}, 1)}
}

// Solve waits for the solver and runs it.
func (s *Serial) Solve(ctx context.Context, p *lp.Problem) (*Solution, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.sem }()
	return s.solver.Solve(ctx, p)
}
