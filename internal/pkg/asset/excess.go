package asset

import (
	"math"

	"github.com/ohowland/cgc_planner/internal/pkg/bus"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/lp"
	"github.com/ohowland/cgc_planner/internal/pkg/timeindex"
)

// ExcessConfig configures the slack sink of a bus.
type ExcessConfig struct {
	Label        string
	Bus          *bus.Bus
	MarginalCost float64
}

// Excess absorbs any surplus on its bus at MarginalCost per unit.
type Excess struct {
	base
	bus *bus.Bus
}

// NewExcess validates cfg and returns the unit. The carrier tag follows the bus.
func NewExcess(cfg ExcessConfig) (*Excess, error) {
	if cfg.Bus == nil {
		return nil, errs.Invalid(cfg.Label, "bus", "bus is not set")
	}
	b, err := newBase(Common{
		Label:        cfg.Label,
		Carrier:      cfg.Bus.Carrier().String(),
		Tech:         "excess",
		MarginalCost: cfg.MarginalCost,
	})
	if err != nil {
		return nil, err
	}
	return &Excess{base: b, bus: cfg.Bus}, nil
}

// Ports returns the single sink port.
func (u *Excess) Ports() []bus.Port {
	return []bus.Port{{Bus: u.bus, Role: bus.Sink}}
}

// DeclareVariables adds flow[t] without an upper bound.
func (u *Excess) DeclareVariables(b *lp.Builder, h timeindex.Horizon) (*Declaration, error) {
	d := newDeclaration(u)
	flow, err := b.AddSeries(u.seriesName(Flow), h.Len(), 0, func(int) float64 {
		return math.Inf(1)
	})
	if err != nil {
		return nil, err
	}
	d.Series[Flow] = flow
	d.Flows = []BusFlow{{Bus: u.bus, Into: false, Vars: flow}}
	return d, nil
}

// DeclareConstraints adds nothing.
func (u *Excess) DeclareConstraints(b *lp.Builder, d *Declaration, h timeindex.Horizon) error {
	return nil
}

// ObjectiveTerms prices the spilled energy.
func (u *Excess) ObjectiveTerms(d *Declaration, h timeindex.Horizon) []lp.Term {
	return u.dispatchCost(d.Series[Flow], u.common.MarginalCost)
}

// Bus is the bus this sink serves.
func (u *Excess) Bus() *bus.Bus {
	return u.bus
}
