package asset

import (
	"github.com/ohowland/cgc_planner/internal/pkg/bus"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/lp"
	"github.com/ohowland/cgc_planner/internal/pkg/timeindex"
)

// StorageConfig configures a storage that charges from and discharges into one bus.
type StorageConfig struct {
	Common
	StorageParams
	Bus *bus.Bus
}

// Storage is a battery, pumped hydro, cavern or thermal store. Charge and
// discharge are each bounded by the power capacity.
type Storage struct {
	base
	store
	bus *bus.Bus
}

// NewStorage validates cfg and returns the unit.
func NewStorage(cfg StorageConfig) (*Storage, error) {
	b, err := newBase(cfg.Common)
	if err != nil {
		return nil, err
	}
	if err := cfg.StorageParams.validate(cfg.Label); err != nil {
		return nil, err
	}
	if cfg.Bus == nil {
		return nil, errs.Invalid(cfg.Label, "bus", "bus is not set")
	}
	return &Storage{base: b, store: store{params: cfg.StorageParams}, bus: cfg.Bus}, nil
}

// Ports returns the single exchange port.
func (u *Storage) Ports() []bus.Port {
	return []bus.Port{{Bus: u.bus, Role: bus.Exchange}}
}

// DeclareVariables adds charge[t], discharge[t], level[0..T] and both invest variables.
func (u *Storage) DeclareVariables(b *lp.Builder, h timeindex.Horizon) (*Declaration, error) {
	d := newDeclaration(u)
	c, err := u.declareInvest(b, d, Invest)
	if err != nil {
		return nil, err
	}
	if _, err := u.declareEnergy(u.base, b, d, h); err != nil {
		return nil, err
	}
	power := func(int) float64 { return c.bound(1) }
	charge, err := b.AddSeries(u.seriesName(Charge), h.Len(), 0, power)
	if err != nil {
		return nil, err
	}
	discharge, err := b.AddSeries(u.seriesName(Discharge), h.Len(), 0, power)
	if err != nil {
		return nil, err
	}
	d.Series[Charge] = charge
	d.Series[Discharge] = discharge
	d.Flows = []BusFlow{
		{Bus: u.bus, Into: false, Vars: charge},
		{Bus: u.bus, Into: true, Vars: discharge},
	}
	return d, nil
}

// DeclareConstraints adds the state equation and the power limits.
func (u *Storage) DeclareConstraints(b *lp.Builder, d *Declaration, h timeindex.Horizon) error {
	c := u.capacityOf(d)
	charge, discharge := d.Series[Charge], d.Series[Discharge]
	for t := 0; t < h.Len(); t++ {
		if err := c.limit(b, u.rowName("charge_limit", t), charge[t], 1); err != nil {
			return err
		}
		if err := c.limit(b, u.rowName("discharge_limit", t), discharge[t], 1); err != nil {
			return err
		}
	}
	return u.declareState(u.base, b, d, charge, discharge, h)
}

// ObjectiveTerms prices power and energy investment and discharge.
func (u *Storage) ObjectiveTerms(d *Declaration, h timeindex.Horizon) []lp.Term {
	terms := u.investCost(u.capacityOf(d))
	terms = append(terms, u.energyCost(u.energyOf(u.base, d))...)
	return append(terms, u.dispatchCost(d.Series[Discharge], u.common.MarginalCost)...)
}

// Params returns the energy-side configuration.
func (u *Storage) Params() StorageParams {
	return u.params
}
