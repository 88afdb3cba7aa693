// Package runner drives one planning run: read the inputs, wire the
// scenario, assemble and solve the model, and publish the results.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/config"
	"github.com/ohowland/cgc_planner/internal/pkg/data"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/logging"
	"github.com/ohowland/cgc_planner/internal/pkg/metrics"
	"github.com/ohowland/cgc_planner/internal/pkg/model"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/ohowland/cgc_planner/internal/pkg/results"
	"github.com/ohowland/cgc_planner/internal/pkg/scenario"
	"github.com/ohowland/cgc_planner/internal/pkg/solver"
)

// BalanceTolerance is the largest bus imbalance accepted in a solution
// before the run logs a warning.
const BalanceTolerance = 1e-6

// Option configures a Runner.
type Option func(*Runner)

// WithSolver replaces the default serialized simplex solver.
func WithSolver(s solver.Solver) Option {
	return func(r *Runner) { r.solver = s }
}

// WithObserver receives assembly progress next to the Progress topic.
func WithObserver(o model.Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithRowProgress receives the running row count while the timeseries is read.
func WithRowProgress(f func(int)) Option {
	return func(r *Runner) { r.rows = f }
}

// Runner executes runs against one configuration.
type Runner struct {
	cfg      config.Config
	pub      *msg.PubSub
	log      logr.Logger
	solver   solver.Solver
	observer model.Observer
	rows     func(int)
}

// New returns a Runner publishing on pub.
func New(cfg config.Config, pub *msg.PubSub, log logr.Logger, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, pub: pub, log: log.WithName("runner")}
	for _, opt := range opts {
		opt(r)
	}
	if r.solver == nil {
		r.solver = solver.NewSerial(&solver.Simplex{
			Tolerance: cfg.Solver.Tolerance,
			Duals:     cfg.Solver.Duals,
			MaxCells:  cfg.Solver.MaxCells,
			Log:       log.WithName("solver"),
		})
	}
	return r
}

// Run performs one run. Lifecycle events go to the Status topic and the
// results to the Result topic.
func (r *Runner) Run(ctx context.Context) (*results.Results, error) {
	runID, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	log := r.log.WithValues("run", runID.String())
	r.event(runID, results.StageStarted, "")

	res, err := r.run(ctx, log, runID)
	if err != nil {
		log.Error(err, "run failed")
		r.event(runID, results.StageFailed, err.Error())
		return nil, err
	}
	r.pub.Publish(msg.Result, res)
	r.event(runID, results.StageSolved, fmt.Sprintf("objective %g", res.Objective))
	log.Info("run solved", "objective", res.Objective, "units", len(res.Units))
	return res, nil
}

func (r *Runner) run(ctx context.Context, log logr.Logger, runID uuid.UUID) (*results.Results, error) {
	in, err := LoadInputs(r.cfg.Inputs, r.cfg.Solver.Hours, r.rows)
	if err != nil {
		return nil, err
	}
	sc, err := scenario.LoadFile(r.cfg.Scenario)
	if err != nil {
		return nil, err
	}
	sys, err := sc.Build(in)
	if err != nil {
		return nil, err
	}
	log.Info("scenario wired", "scenario", sys.Name, "units", len(sys.Units), "hours", sys.Horizon.Len())

	start := time.Now()
	m, err := model.Build(sys.Network, sys.Units, sys.Horizon,
		model.WithLogger(log),
		model.WithObserver(r.progress),
	)
	if err != nil {
		return nil, err
	}
	p := m.Problem()
	metrics.ObserveBuild(time.Since(start), p.NumVars(), p.NumRows())
	r.event(runID, results.StageBuilt, fmt.Sprintf("%d variables, %d rows", p.NumVars(), p.NumRows()))

	if r.cfg.LP.Export != "" {
		if err := exportLP(m, r.cfg.LP.Export); err != nil {
			return nil, err
		}
		log.Info("model exported", "path", r.cfg.LP.Export)
	}

	start = time.Now()
	sol, err := r.solver.Solve(ctx, p)
	if err != nil {
		metrics.ObserveSolve(time.Since(start), failureStatus(err), 0)
		return nil, err
	}
	metrics.ObserveSolve(time.Since(start), sol.Status, sol.Objective)

	if err := results.CheckBalance(m, sol, BalanceTolerance); err != nil {
		logging.Warn(log, "solution is out of balance", "error", err.Error())
	}
	res, err := results.Extract(m, sol)
	if err != nil {
		return nil, err
	}
	res.RunID = runID
	return res, nil
}

func (r *Runner) progress(p model.Progress) {
	r.pub.Publish(msg.Progress, p)
	if r.observer != nil {
		r.observer(p)
	}
}

func (r *Runner) event(runID uuid.UUID, stage, message string) {
	r.pub.Publish(msg.Status, results.Event{
		RunID:   runID,
		Stage:   stage,
		Message: message,
		Time:    time.Now().UTC(),
	})
}

// LoadInputs reads the three input files. hours > 0 keeps only the first
// hours of the timeseries; the full series stays in Inputs.Full so loads
// keep their share of the annual amount.
func LoadInputs(cfg config.Inputs, hours int, rows func(int)) (scenario.Inputs, error) {
	in := scenario.Inputs{}
	series, err := data.LoadTimeseriesFile(cfg.Timeseries, rows)
	if err != nil {
		return in, err
	}
	if hours > 0 && hours < series.Horizon().Len() {
		in.Full = series
		if series, err = series.Head(hours); err != nil {
			return in, err
		}
	}
	in.Series = series

	for _, t := range []struct {
		path string
		dst  **data.Table
	}{
		{cfg.Costs, &in.Costs},
		{cfg.Capacity, &in.Capacity},
	} {
		if t.path == "" {
			continue
		}
		tbl, err := data.LoadTableFile(t.path)
		if err != nil {
			return in, err
		}
		if cfg.Transposed {
			tbl = tbl.Transpose()
		}
		*t.dst = tbl
	}
	return in, nil
}

func exportLP(m *model.Model, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.WriteLP(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func failureStatus(err error) string {
	var e *errs.Error
	if errors.As(err, &e) && e.Status != "" {
		return e.Status
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "error"
}
