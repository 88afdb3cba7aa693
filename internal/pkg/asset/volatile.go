package asset

import (
	"github.com/ohowland/cgc_planner/internal/pkg/bus"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/lp"
	"github.com/ohowland/cgc_planner/internal/pkg/timeindex"
)

// VolatileConfig configures a variable-output generator: wind, solar, run of river.
type VolatileConfig struct {
	Common
	Bus     *bus.Bus
	Profile []float64 // output share of capacity per timestep, in [0, 1]
}

// Volatile is a generator whose output is bounded by capacity × profile[t].
type Volatile struct {
	base
	bus     *bus.Bus
	profile []float64
}

// NewVolatile validates cfg and returns the unit.
func NewVolatile(cfg VolatileConfig) (*Volatile, error) {
	b, err := newBase(cfg.Common)
	if err != nil {
		return nil, err
	}
	if cfg.Bus == nil {
		return nil, errs.Invalid(cfg.Label, "bus", "bus is not set")
	}
	profile := make([]float64, len(cfg.Profile))
	copy(profile, cfg.Profile)
	return &Volatile{base: b, bus: cfg.Bus, profile: profile}, nil
}

// Ports returns the single output port.
func (u *Volatile) Ports() []bus.Port {
	return []bus.Port{{Bus: u.bus, Role: bus.Output}}
}

// DeclareVariables adds flow[t] and, when expandable, the invest variable.
func (u *Volatile) DeclareVariables(b *lp.Builder, h timeindex.Horizon) (*Declaration, error) {
	if err := checkProfile(u.Label(), u.profile, h, true); err != nil {
		return nil, err
	}
	d := newDeclaration(u)
	c, err := u.declareInvest(b, d, Invest)
	if err != nil {
		return nil, err
	}
	flow, err := b.AddSeries(u.seriesName(Flow), h.Len(), 0, func(t int) float64 {
		return c.bound(u.profile[t])
	})
	if err != nil {
		return nil, err
	}
	d.Series[Flow] = flow
	d.Flows = []BusFlow{{Bus: u.bus, Into: true, Vars: flow}}
	return d, nil
}

// DeclareConstraints adds flow[t] <= profile[t] × capacity for expandable units.
func (u *Volatile) DeclareConstraints(b *lp.Builder, d *Declaration, h timeindex.Horizon) error {
	c := u.capacityOf(d)
	for t, v := range d.Series[Flow] {
		if err := c.limit(b, u.rowName("volatile", t), v, u.profile[t]); err != nil {
			return err
		}
	}
	return nil
}

// ObjectiveTerms prices investment and dispatch.
func (u *Volatile) ObjectiveTerms(d *Declaration, h timeindex.Horizon) []lp.Term {
	terms := u.investCost(u.capacityOf(d))
	return append(terms, u.dispatchCost(d.Series[Flow], u.common.MarginalCost)...)
}

// Profile returns a copy of the output profile.
func (u *Volatile) Profile() []float64 {
	out := make([]float64, len(u.profile))
	copy(out, u.profile)
	return out
}
