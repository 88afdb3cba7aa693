package solver

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/lp"
	"gotest.tools/v3/assert"
)

const tol = 1e-7

func near(a, b float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Abs(b))
}

func TestSimplexSmall(t *testing.T) {
	b := lp.NewBuilder()
	x, _ := b.AddVar("x", 0, math.Inf(1))
	y, _ := b.AddVar("y", 0, math.Inf(1))
	_, err := b.AddRow("r1", []lp.Term{lp.T(-1, x), lp.T(2, y)}, lp.LE, 4)
	assert.NilError(t, err)
	_, err = b.AddRow("r2", []lp.Term{lp.T(3, x), lp.T(1, y)}, lp.LE, 9)
	assert.NilError(t, err)
	assert.NilError(t, b.AddObjective(lp.T(-1, x), lp.T(-2, y)))

	sol, err := NewSimplex(true, logr.Discard()).Solve(context.Background(), b.Freeze())
	assert.NilError(t, err)
	assert.Equal(t, sol.Status, Optimal)
	assert.Assert(t, near(sol.Objective, -8), "objective %v", sol.Objective)
	assert.Assert(t, near(sol.Primal[x], 2))
	assert.Assert(t, near(sol.Primal[y], 3))
	assert.Assert(t, near(sol.Duals[0], -5.0/7), "dual %v", sol.Duals[0])
	assert.Assert(t, near(sol.Duals[1], -4.0/7), "dual %v", sol.Duals[1])
}

func TestSimplexEqualityDual(t *testing.T) {
	b := lp.NewBuilder()
	x, _ := b.AddVar("x", 0, 8)
	y, _ := b.AddVar("y", 0, 5)
	_, err := b.AddRow("total", []lp.Term{lp.T(1, x), lp.T(1, y)}, lp.EQ, 10)
	assert.NilError(t, err)
	_, err = b.AddRow("floor", []lp.Term{lp.T(1, x)}, lp.GE, 3)
	assert.NilError(t, err)
	assert.NilError(t, b.AddObjective(lp.T(1, x), lp.T(2, y)))

	sol, err := NewSimplex(true, logr.Discard()).Solve(context.Background(), b.Freeze())
	assert.NilError(t, err)
	// x takes as much as it can: x = 8, y = 2.
	assert.Assert(t, near(sol.Objective, 12), "objective %v", sol.Objective)
	assert.Assert(t, near(sol.Primal[x], 8))
	assert.Assert(t, near(sol.Duals[0], 2), "dual %v", sol.Duals[0])
	assert.Assert(t, near(sol.Duals[1], 0), "dual %v", sol.Duals[1])
}

func TestSimplexInfeasible(t *testing.T) {
	b := lp.NewBuilder()
	x, _ := b.AddVar("x", 0, 2)
	_, err := b.AddRow("floor", []lp.Term{lp.T(1, x)}, lp.GE, 5)
	assert.NilError(t, err)
	assert.NilError(t, b.AddObjective(lp.T(1, x)))

	_, err = NewSimplex(false, logr.Discard()).Solve(context.Background(), b.Freeze())
	assert.Assert(t, errors.Is(err, errs.ErrSolverFailure))
	var e *errs.Error
	assert.Assert(t, errors.As(err, &e))
	assert.Equal(t, e.Status, Infeasible)
}

func TestSimplexUnbounded(t *testing.T) {
	b := lp.NewBuilder()
	x, _ := b.AddVar("x", 0, math.Inf(1))
	y, _ := b.AddVar("y", 0, 1)
	_, err := b.AddRow("r", []lp.Term{lp.T(1, y), lp.T(-1, x)}, lp.LE, 1)
	assert.NilError(t, err)
	assert.NilError(t, b.AddObjective(lp.T(-1, x)))

	_, err = NewSimplex(false, logr.Discard()).Solve(context.Background(), b.Freeze())
	var e *errs.Error
	assert.Assert(t, errors.As(err, &e))
	assert.Equal(t, e.Status, Unbounded)
}

func TestSimplexEmptyRowInfeasible(t *testing.T) {
	b := lp.NewBuilder()
	x, _ := b.AddVar("x", 0, 1)
	_, err := b.AddRow("empty", nil, lp.EQ, 1)
	assert.NilError(t, err)
	assert.NilError(t, b.AddObjective(lp.T(1, x)))

	_, err = NewSimplex(false, logr.Discard()).Solve(context.Background(), b.Freeze())
	var e *errs.Error
	assert.Assert(t, errors.As(err, &e))
	assert.Equal(t, e.Status, Infeasible)
	assert.ErrorContains(t, err, `row "empty"`)
}

func TestSimplexTooLarge(t *testing.T) {
	b := lp.NewBuilder()
	x, _ := b.AddVar("x", 0, 1)
	assert.NilError(t, b.AddObjective(lp.T(1, x)))

	s := NewSimplex(false, logr.Discard())
	s.MaxCells = 1
	_, err := s.Solve(context.Background(), b.Freeze())
	var e *errs.Error
	assert.Assert(t, errors.As(err, &e))
	assert.Equal(t, e.Status, TooLarge)
}

func TestSimplexCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimplex(false, logr.Discard()).Solve(ctx, lp.NewBuilder().Freeze())
	assert.Assert(t, errors.Is(err, context.Canceled))
}

// BEGIN --- Serial Tests

type blockingSolver struct {
	entered chan struct{}
	release chan struct{}
}

func (s blockingSolver) Solve(ctx context.Context, p *lp.Problem) (*Solution, error) {
	s.entered <- struct{}{}
	<-s.release
	return &Solution{Status: Optimal}, nil
}

func TestSerialAllowsOneSolve(t *testing.T) {
	inner := blockingSolver{make(chan struct{}, 1), make(chan struct{})}
	s := NewSerial(inner)
	p := lp.NewBuilder().Freeze()

	done := make(chan error, 1)
	go func() {
		_, err := s.Solve(context.Background(), p)
		done <- err
	}()
	<-inner.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Solve(ctx, p)
	assert.Assert(t, errors.Is(err, context.DeadlineExceeded))

	close(inner.release)
	assert.NilError(t, <-done)

	sol, err := s.Solve(context.Background(), p)
	assert.NilError(t, err)
	assert.Equal(t, sol.Status, Optimal)
	assert.Equal(t, len(inner.entered), 1)
}
