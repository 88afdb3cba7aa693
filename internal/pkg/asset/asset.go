// Package asset is the technology catalog: each archetype knows the variables,
// constraints and objective terms it contributes to the capacity expansion LP.
package asset

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/bus"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/lp"
	"github.com/ohowland/cgc_planner/internal/pkg/timeindex"
)

// Unit is the capability set every archetype implements.
type Unit interface {
	PID() uuid.UUID
	Label() string
	Carrier() string
	Tech() string
	Ports() []bus.Port
	DeclareVariables(*lp.Builder, timeindex.Horizon) (*Declaration, error)
	DeclareConstraints(*lp.Builder, *Declaration, timeindex.Horizon) error
	ObjectiveTerms(*Declaration, timeindex.Horizon) []lp.Term
}

// Series and scalar names shared by the archetypes and the result extractor.
const (
	Flow            = "flow"
	Inflow          = "inflow"
	Charge          = "charge"
	Discharge       = "discharge"
	Level           = "level"
	FuelFlow        = "fuel"
	ElectricityFlow = "electricity"
	HeatFlow        = "heat"
	InputFlow       = "input"
	OutputFlow      = "output"
	Demand          = "demand"

	Invest               = "invest"
	StorageInvest        = "storage_invest"
	Capacity             = "capacity"
	StorageCapacity      = "storage_capacity"
	ExistingCapacity     = "existing_capacity"
	ExistingStorage      = "existing_storage_capacity"
	MaximumCapacity      = "capacity_max"
	MaximumStorageEnergy = "storage_capacity_max"
)

// BusFlow is one contribution of a unit to a bus balance. Exactly one of Vars
// and Fixed is set.
type BusFlow struct {
	Bus   *bus.Bus
	Into  bool // true when energy enters the bus
	Vars  []lp.Var
	Fixed []float64
}

// Declaration holds the variables one unit declared for one build. It is
// owned by that build; units never keep a reference to it.
type Declaration struct {
	Unit     Unit
	Flows    []BusFlow
	Series   map[string][]lp.Var
	Scalars  map[string]lp.Var
	Fixed    map[string]float64
	Warnings []string
}

func newDeclaration(u Unit) *Declaration {
	return &Declaration{
		Unit:    u,
		Series:  make(map[string][]lp.Var),
		Scalars: make(map[string]lp.Var),
		Fixed:   make(map[string]float64),
	}
}

func (d *Declaration) warn(format string, args ...interface{}) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// Common holds the fields every archetype shares.
type Common struct {
	Label             string
	Carrier           string
	Tech              string
	MarginalCost      float64
	Capacity          float64  // existing
	Expandable        bool
	CapacityPotential *float64 // nil is unbounded
	CapacityCost      *float64 // annualized, per unit of capacity
}

func (c Common) validate() error {
	if c.Label == "" {
		return errs.Invalid("", "label", "label is empty")
	}
	if !finite(c.MarginalCost) {
		return errs.Invalid(c.Label, "marginal_cost", "must be finite, got %v", c.MarginalCost)
	}
	if !finite(c.Capacity) || c.Capacity < 0 {
		return errs.Invalid(c.Label, "capacity", "must be finite and >= 0, got %v", c.Capacity)
	}
	if c.CapacityPotential != nil {
		p := *c.CapacityPotential
		if math.IsNaN(p) || p < 0 {
			return errs.Invalid(c.Label, "capacity_potential", "must be >= 0, got %v", p)
		}
	}
	if c.CapacityCost != nil {
		cc := *c.CapacityCost
		if !finite(cc) || cc < 0 {
			return errs.Invalid(c.Label, "capacity_cost", "must be finite and >= 0, got %v", cc)
		}
	}
	return nil
}

// base carries identity and the shared fields for every archetype.
type base struct {
	pid    uuid.UUID
	common Common
}

func newBase(c Common) (base, error) {
	if err := c.validate(); err != nil {
		return base{}, err
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return base{}, err
	}
	return base{pid: pid, common: c}, nil
}

// PID is an accessor for the unit process id.
func (b base) PID() uuid.UUID { return b.pid }

// Label is the unit's unique identifier within a model.
func (b base) Label() string { return b.common.Label }

// Carrier is the unit's carrier tag.
func (b base) Carrier() string { return b.common.Carrier }

// Tech is the unit's technology tag.
func (b base) Tech() string { return b.common.Tech }

// Common returns a copy of the shared configuration.
func (b base) Common() Common { return b.common }

// capacity is existing capacity plus an optional invest variable.
type capacity struct {
	existing   float64
	expandable bool
	invest     lp.Var
}

// declareInvest adds the invest variable for an expandable unit, or records
// that cost and potential are ignored for a fixed one.
func (b base) declareInvest(bld *lp.Builder, d *Declaration, name string) (capacity, error) {
	c := capacity{existing: b.common.Capacity, expandable: b.common.Expandable}
	if !c.expandable {
		if b.common.CapacityCost != nil || b.common.CapacityPotential != nil {
			d.warn("%s is not expandable; capacity_cost and capacity_potential are ignored", b.common.Label)
		}
		d.Fixed[Capacity] = c.existing
		return c, nil
	}

	upper := math.Inf(1)
	if b.common.CapacityPotential != nil {
		upper = *b.common.CapacityPotential
	}
	v, err := bld.AddVar(fmt.Sprintf("%s_%s", name, b.common.Label), 0, upper)
	if err != nil {
		return c, err
	}
	c.invest = v
	d.Scalars[Invest] = v
	d.Fixed[ExistingCapacity] = c.existing
	if !math.IsInf(upper, 1) {
		d.Fixed[MaximumCapacity] = c.existing + upper
	}
	return c, nil
}

// capacityOf recovers the capacity declared for this build.
func (b base) capacityOf(d *Declaration) capacity {
	c := capacity{existing: b.common.Capacity, expandable: b.common.Expandable}
	if v, ok := d.Scalars[Invest]; ok {
		c.invest = v
	}
	return c
}

// bound returns the per-timestep upper bound for a flow limited by
// scale × capacity. Expandable units are bounded by a row instead.
func (c capacity) bound(scale float64) float64 {
	if c.expandable {
		return math.Inf(1)
	}
	return c.existing * scale
}

// limit adds flow - scale × invest <= scale × existing for expandable units.
func (c capacity) limit(bld *lp.Builder, name string, flow lp.Var, scale float64) error {
	if !c.expandable {
		return nil
	}
	_, err := bld.AddRow(name, []lp.Term{lp.T(1, flow), lp.T(-scale, c.invest)}, lp.LE, scale*c.existing)
	return err
}

func (b base) investCost(c capacity) []lp.Term {
	if !c.expandable || b.common.CapacityCost == nil || *b.common.CapacityCost == 0 {
		return nil
	}
	return []lp.Term{lp.T(*b.common.CapacityCost, c.invest)}
}

func (b base) dispatchCost(vars []lp.Var, cost float64) []lp.Term {
	if cost == 0 {
		return nil
	}
	terms := make([]lp.Term, len(vars))
	for t, v := range vars {
		terms[t] = lp.T(cost, v)
	}
	return terms
}

func (b base) rowName(rule string, t int) string {
	return fmt.Sprintf("%s_%s_%d", rule, b.common.Label, t)
}

func (b base) seriesName(kind string) string {
	return fmt.Sprintf("%s_%s", kind, b.common.Label)
}

// checkProfile validates an exogenous profile against the horizon. Shares
// must lie in [0, 1] when unit is true.
func checkProfile(label string, profile []float64, h timeindex.Horizon, unit bool) error {
	if len(profile) != h.Len() {
		return errs.Invalid(label, "profile", "has %d values, horizon has %d", len(profile), h.Len())
	}
	for t, p := range profile {
		if !finite(p) || p < 0 || (unit && p > 1) {
			e := errs.Invalid(label, "profile", "value %v out of range", p)
			e.Timestep = t
			return e
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Attach connects every port of u to its bus on n.
func Attach(n *bus.Network, u Unit) error {
	for _, p := range u.Ports() {
		if err := n.Attach(u, p.Bus, p.Role); err != nil {
			return err
		}
	}
	return nil
}

// Float returns a pointer to v, for the optional Common fields.
func Float(v float64) *float64 {
	return &v
}
