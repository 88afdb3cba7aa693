package asset

import (
	"math"

	"github.com/ohowland/cgc_planner/internal/pkg/bus"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/lp"
	"github.com/ohowland/cgc_planner/internal/pkg/timeindex"
)

// CommodityConfig configures a fuel source with a fixed annual budget.
type CommodityConfig struct {
	Common
	Bus    *bus.Bus
	Amount float64 // total energy available over the horizon
}

// Commodity supplies at most Amount over the horizon. It has no capacity.
type Commodity struct {
	base
	bus    *bus.Bus
	amount float64
}

// NewCommodity validates cfg and returns the unit.
func NewCommodity(cfg CommodityConfig) (*Commodity, error) {
	b, err := newBase(cfg.Common)
	if err != nil {
		return nil, err
	}
	if cfg.Bus == nil {
		return nil, errs.Invalid(cfg.Label, "bus", "bus is not set")
	}
	if math.IsNaN(cfg.Amount) || cfg.Amount < 0 {
		return nil, errs.Invalid(cfg.Label, "amount", "must be >= 0, got %v", cfg.Amount)
	}
	return &Commodity{base: b, bus: cfg.Bus, amount: cfg.Amount}, nil
}

// Ports returns the single output port.
func (u *Commodity) Ports() []bus.Port {
	return []bus.Port{{Bus: u.bus, Role: bus.Output}}
}

// DeclareVariables adds flow[t].
func (u *Commodity) DeclareVariables(b *lp.Builder, h timeindex.Horizon) (*Declaration, error) {
	d := newDeclaration(u)
	if u.common.Expandable || u.common.CapacityCost != nil || u.common.CapacityPotential != nil {
		d.warn("%s is a commodity; capacity fields are ignored", u.Label())
	}
	flow, err := b.AddSeries(u.seriesName(Flow), h.Len(), 0, func(int) float64 {
		return math.Inf(1)
	})
	if err != nil {
		return nil, err
	}
	d.Series[Flow] = flow
	d.Flows = []BusFlow{{Bus: u.bus, Into: true, Vars: flow}}
	return d, nil
}

// DeclareConstraints adds sum(flow) <= amount.
func (u *Commodity) DeclareConstraints(b *lp.Builder, d *Declaration, h timeindex.Horizon) error {
	if math.IsInf(u.amount, 1) {
		return nil
	}
	terms := make([]lp.Term, 0, h.Len())
	for _, v := range d.Series[Flow] {
		terms = append(terms, lp.T(1, v))
	}
	_, err := b.AddRow(u.seriesName("amount"), terms, lp.LE, u.amount)
	return err
}

// ObjectiveTerms prices dispatch.
func (u *Commodity) ObjectiveTerms(d *Declaration, h timeindex.Horizon) []lp.Term {
	return u.dispatchCost(d.Series[Flow], u.common.MarginalCost)
}

// Amount is the energy budget over the horizon.
func (u *Commodity) Amount() float64 {
	return u.amount
}
