package asset

import (
	"github.com/ohowland/cgc_planner/internal/pkg/bus"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/lp"
	"github.com/ohowland/cgc_planner/internal/pkg/timeindex"
)

// DefaultReservoirInitialLevel is the share of energy capacity a reservoir starts with.
const DefaultReservoirInitialLevel = 0.5

// ReservoirConfig configures a storage filled by an exogenous inflow instead
// of by its bus.
type ReservoirConfig struct {
	Common
	StorageParams
	Bus     *bus.Bus
	Profile []float64 // inflow per unit of power capacity, >= 0
}

// Reservoir discharges into its bus and is filled by inflow[t] ≤
// capacity × profile[t]. Unused inflow spills.
type Reservoir struct {
	base
	store
	bus     *bus.Bus
	profile []float64
}

// NewReservoir validates cfg and returns the unit. A nil InitialLevel takes
// DefaultReservoirInitialLevel.
func NewReservoir(cfg ReservoirConfig) (*Reservoir, error) {
	b, err := newBase(cfg.Common)
	if err != nil {
		return nil, err
	}
	params := cfg.StorageParams
	if params.InitialLevel == nil {
		params.InitialLevel = Float(DefaultReservoirInitialLevel)
	}
	if err := params.validate(cfg.Label); err != nil {
		return nil, err
	}
	if cfg.Bus == nil {
		return nil, errs.Invalid(cfg.Label, "bus", "bus is not set")
	}
	profile := make([]float64, len(cfg.Profile))
	copy(profile, cfg.Profile)
	return &Reservoir{base: b, store: store{params: params}, bus: cfg.Bus, profile: profile}, nil
}

// Ports returns the single output port.
func (u *Reservoir) Ports() []bus.Port {
	return []bus.Port{{Bus: u.bus, Role: bus.Output}}
}

// DeclareVariables adds inflow[t], discharge[t], level[0..T] and both invest variables.
func (u *Reservoir) DeclareVariables(b *lp.Builder, h timeindex.Horizon) (*Declaration, error) {
	if err := checkProfile(u.Label(), u.profile, h, false); err != nil {
		return nil, err
	}
	d := newDeclaration(u)
	c, err := u.declareInvest(b, d, Invest)
	if err != nil {
		return nil, err
	}
	if _, err := u.declareEnergy(u.base, b, d, h); err != nil {
		return nil, err
	}
	inflow, err := b.AddSeries(u.seriesName(Inflow), h.Len(), 0, func(t int) float64 {
		return c.bound(u.profile[t])
	})
	if err != nil {
		return nil, err
	}
	discharge, err := b.AddSeries(u.seriesName(Discharge), h.Len(), 0, func(int) float64 {
		return c.bound(1)
	})
	if err != nil {
		return nil, err
	}
	d.Series[Inflow] = inflow
	d.Series[Discharge] = discharge
	d.Flows = []BusFlow{{Bus: u.bus, Into: true, Vars: discharge}}
	return d, nil
}

// DeclareConstraints adds the inflow and power limits and the state equation.
func (u *Reservoir) DeclareConstraints(b *lp.Builder, d *Declaration, h timeindex.Horizon) error {
	c := u.capacityOf(d)
	inflow, discharge := d.Series[Inflow], d.Series[Discharge]
	for t := 0; t < h.Len(); t++ {
		if err := c.limit(b, u.rowName("inflow_limit", t), inflow[t], u.profile[t]); err != nil {
			return err
		}
		if err := c.limit(b, u.rowName("discharge_limit", t), discharge[t], 1); err != nil {
			return err
		}
	}
	return u.declareState(u.base, b, d, inflow, discharge, h)
}

// ObjectiveTerms prices power and energy investment and discharge.
func (u *Reservoir) ObjectiveTerms(d *Declaration, h timeindex.Horizon) []lp.Term {
	terms := u.investCost(u.capacityOf(d))
	terms = append(terms, u.energyCost(u.energyOf(u.base, d))...)
	return append(terms, u.dispatchCost(d.Series[Discharge], u.common.MarginalCost)...)
}

// Profile returns a copy of the inflow profile.
func (u *Reservoir) Profile() []float64 {
	out := make([]float64, len(u.profile))
	copy(out, u.profile)
	return out
}
