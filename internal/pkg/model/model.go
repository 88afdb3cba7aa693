// Package model assembles technology units on a carrier network into one
// linear program and freezes it into an immutable Model.
package model

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/asset"
	"github.com/ohowland/cgc_planner/internal/pkg/bus"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/logging"
	"github.com/ohowland/cgc_planner/internal/pkg/lp"
	"github.com/ohowland/cgc_planner/internal/pkg/timeindex"
)

// Progress reports how far a build has come. Done counts unit steps across
// all stages; Total is known from the start.
type Progress struct {
	Stage string
	Done  int
	Total int
}

// Observer is called after every unit step of a build.
type Observer func(Progress)

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger for build messages and warnings.
func WithLogger(l logr.Logger) Option {
	return func(a *Assembler) { a.log = l }
}

// WithObserver sets the progress observer.
func WithObserver(o Observer) Option {
	return func(a *Assembler) { a.observer = o }
}

// Assembler drives one build through Unregistered, VariablesDeclared,
// ConstraintsDeclared, ObjectiveDeclared and Built.
type Assembler struct {
	pid      uuid.UUID
	state    state
	net      *bus.Network
	units    []asset.Unit
	horizon  timeindex.Horizon
	log      logr.Logger
	observer Observer

	builder  *lp.Builder
	decls    []*asset.Declaration
	balance  map[string][]int
	warnings []string
	done     int
	model    *Model
}

// NewAssembler returns an assembler in the Unregistered state.
func NewAssembler(net *bus.Network, units []asset.Unit, h timeindex.Horizon, opts ...Option) (*Assembler, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	a := &Assembler{
		pid:     pid,
		state:   unregisteredState{},
		net:     net,
		units:   append([]asset.Unit(nil), units...),
		horizon: h,
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithName("assembler")
	return a, nil
}

// Build creates a fresh Assembler and builds it once.
func Build(net *bus.Network, units []asset.Unit, h timeindex.Horizon, opts ...Option) (*Model, error) {
	a, err := NewAssembler(net, units, h, opts...)
	if err != nil {
		return nil, err
	}
	return a.Build()
}

// PID is an accessor for the assembler process id.
func (a *Assembler) PID() uuid.UUID {
	return a.pid
}

// State names the current build stage.
func (a *Assembler) State() string {
	return a.state.name()
}

// Build runs every stage and returns the frozen model. A failure at any
// stage resets the assembler to Unregistered and returns no model. Calling
// Build after a successful build returns AlreadyBuilt.
func (a *Assembler) Build() (*Model, error) {
	if _, ok := a.state.(builtState); ok {
		return nil, errs.Built()
	}

	for {
		if _, ok := a.state.(builtState); ok {
			break
		}
		err := a.state.action(a)
		next := a.state.transition(stateIn{failed: err != nil})
		if err != nil {
			a.log.Error(err, "build failed", "stage", a.state.name())
			a.reset()
			a.state = next
			return nil, err
		}
		a.log.V(1).Info("stage complete", "from", a.state.name(), "to", next.name())
		a.state = next
	}

	a.log.Info("model built",
		"variables", a.model.problem.NumVars(),
		"rows", a.model.problem.NumRows(),
		"units", len(a.units),
		"timesteps", a.horizon.Len())
	return a.model, nil
}

func (a *Assembler) reset() {
	a.builder = nil
	a.decls = nil
	a.balance = nil
	a.warnings = nil
	a.done = 0
	a.model = nil
}

func (a *Assembler) total() int {
	return 3 * len(a.units)
}

func (a *Assembler) step(stage string) {
	a.done++
	if a.observer != nil {
		a.observer(Progress{Stage: stage, Done: a.done, Total: a.total()})
	}
}

// register validates the inputs: a non-empty horizon, unique unit labels,
// every unit port attached to the network, and an excess sink on every bus.
func (a *Assembler) register() error {
	if a.net == nil {
		return errs.Build("", "", errors.New("no network"))
	}
	if a.horizon.Len() <= 0 {
		return errs.Build("", "", errors.New("horizon is empty"))
	}
	if len(a.units) == 0 {
		return errs.Build("", "", errors.New("no units"))
	}
	buses := a.net.Buses()
	if len(buses) == 0 {
		return errs.Build("", "", errors.New("network has no buses"))
	}

	labels := make(map[string]bool, len(a.units))
	for _, u := range a.units {
		if labels[u.Label()] {
			return errs.Build(u.Label(), "", fmt.Errorf("duplicate unit label %q", u.Label()))
		}
		labels[u.Label()] = true
	}

	attached := make(map[uuid.UUID]map[uuid.UUID]bus.Role)
	for _, b := range buses {
		for _, m := range a.net.Members(b) {
			if attached[m.Member.PID()] == nil {
				attached[m.Member.PID()] = make(map[uuid.UUID]bus.Role)
			}
			attached[m.Member.PID()][b.PID()] = m.Role
		}
	}
	for _, u := range a.units {
		for _, p := range u.Ports() {
			if p.Bus == nil {
				return errs.Build(u.Label(), "", errors.New("port has no bus"))
			}
			if role, ok := attached[u.PID()][p.Bus.PID()]; !ok || role != p.Role {
				return errs.Build(u.Label(), p.Bus.Name(),
					fmt.Errorf("%v port is not attached to the network", p.Role))
			}
		}
	}

	slack := make(map[uuid.UUID]bool, len(buses))
	for _, u := range a.units {
		for _, p := range u.Ports() {
			if p.Role == bus.Sink {
				slack[p.Bus.PID()] = true
			}
		}
	}
	for _, b := range buses {
		if !slack[b.PID()] {
			return errs.Slack(b.Name())
		}
	}

	// Every network member must be one of the units being built.
	known := make(map[uuid.UUID]bool, len(a.units))
	for _, u := range a.units {
		known[u.PID()] = true
	}
	for _, b := range buses {
		for _, m := range a.net.Members(b) {
			if !known[m.Member.PID()] {
				return errs.Build(m.Member.Label(), b.Name(),
					errors.New("network member is not among the units"))
			}
		}
	}
	return nil
}

func (a *Assembler) declareVariables() error {
	a.builder = lp.NewBuilder()
	a.decls = make([]*asset.Declaration, 0, len(a.units))
	for _, u := range a.units {
		d, err := u.DeclareVariables(a.builder, a.horizon)
		if err != nil {
			return errs.Build(u.Label(), "", err)
		}
		for _, w := range d.Warnings {
			logging.Warn(a.log, w, "unit", u.Label())
			a.warnings = append(a.warnings, w)
		}
		a.decls = append(a.decls, d)
		a.step("variables")
	}
	return nil
}

func (a *Assembler) declareConstraints() error {
	for _, d := range a.decls {
		if err := d.Unit.DeclareConstraints(a.builder, d, a.horizon); err != nil {
			return errs.Build(d.Unit.Label(), "", err)
		}
		a.step("constraints")
	}
	return a.declareBalance()
}

// declareBalance adds, per bus and timestep, Σ inflow − Σ outflow = fixed demand.
func (a *Assembler) declareBalance() error {
	a.balance = make(map[string][]int)
	for _, b := range a.net.Buses() {
		rows := make([]int, a.horizon.Len())
		for t := 0; t < a.horizon.Len(); t++ {
			var terms []lp.Term
			var rhs float64
			for _, d := range a.decls {
				for _, f := range d.Flows {
					if f.Bus != b {
						continue
					}
					sign := 1.0
					if !f.Into {
						sign = -1
					}
					if f.Vars != nil {
						terms = append(terms, lp.T(sign, f.Vars[t]))
					} else {
						rhs -= sign * f.Fixed[t]
					}
				}
			}
			i, err := a.builder.AddRow(fmt.Sprintf("balance_%s_%d", b.Name(), t), terms, lp.EQ, rhs)
			if err != nil {
				return errs.Build("", b.Name(), err)
			}
			rows[t] = i
		}
		a.balance[b.Name()] = rows
	}
	return nil
}

func (a *Assembler) declareObjective() error {
	for _, d := range a.decls {
		if err := a.builder.AddObjective(d.Unit.ObjectiveTerms(d, a.horizon)...); err != nil {
			return errs.Build(d.Unit.Label(), "", err)
		}
		a.step("objective")
	}
	return nil
}

func (a *Assembler) freeze() error {
	pid, err := uuid.NewUUID()
	if err != nil {
		return err
	}
	a.net.Freeze()
	byLabel := make(map[string]*asset.Declaration, len(a.decls))
	for _, d := range a.decls {
		byLabel[d.Unit.Label()] = d
	}
	a.model = &Model{
		pid:      pid,
		problem:  a.builder.Freeze(),
		horizon:  a.horizon,
		buses:    a.net.Buses(),
		decls:    a.decls,
		byLabel:  byLabel,
		balance:  a.balance,
		warnings: a.warnings,
	}
	return nil
}

// Model is a built, immutable linear program together with the handles
// needed to read a solution back.
type Model struct {
	pid      uuid.UUID
	problem  *lp.Problem
	horizon  timeindex.Horizon
	buses    []*bus.Bus
	decls    []*asset.Declaration
	byLabel  map[string]*asset.Declaration
	balance  map[string][]int
	warnings []string
}

// PID is an accessor for the model id.
func (m *Model) PID() uuid.UUID { return m.pid }

// Problem returns the frozen linear program.
func (m *Model) Problem() *lp.Problem { return m.problem }

// Horizon is the horizon the model was built over.
func (m *Model) Horizon() timeindex.Horizon { return m.horizon }

// Buses returns the buses in creation order.
func (m *Model) Buses() []*bus.Bus {
	return append([]*bus.Bus(nil), m.buses...)
}

// Declarations returns one declaration per unit in registration order.
func (m *Model) Declarations() []*asset.Declaration {
	return append([]*asset.Declaration(nil), m.decls...)
}

// Declaration looks up a unit's declaration by label.
func (m *Model) Declaration(label string) (*asset.Declaration, bool) {
	d, ok := m.byLabel[label]
	return d, ok
}

// BalanceRows returns the balance row index of each timestep on the named bus.
func (m *Model) BalanceRows(busName string) []int {
	return append([]int(nil), m.balance[busName]...)
}

// Warnings returns the warnings raised during the build.
func (m *Model) Warnings() []string {
	return append([]string(nil), m.warnings...)
}

// WriteLP exports the model in CPLEX LP format with symbolic names.
func (m *Model) WriteLP(w io.Writer) error {
	return m.problem.WriteLP(w)
}
