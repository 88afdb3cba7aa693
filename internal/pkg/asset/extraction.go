package asset

import (
	"math"

	"github.com/ohowland/cgc_planner/internal/pkg/bus"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/lp"
	"github.com/ohowland/cgc_planner/internal/pkg/timeindex"
)

// ExtractionConfig configures an extraction-condensing CHP plant. Capacity is
// electrical.
type ExtractionConfig struct {
	Common
	FuelBus              *bus.Bus
	ElectricityBus       *bus.Bus
	HeatBus              *bus.Bus
	ElectricEfficiency   float64 // η_el at full extraction
	ThermalEfficiency    float64 // η_th at full extraction
	CondensingEfficiency float64 // η_cond, electricity only
	CarrierCost          float64 // per unit of fuel
}

// ExtractionTurbine draws fuel and delivers electricity and heat inside the
// operating region bounded by the condensing line and the backpressure line.
type ExtractionTurbine struct {
	base
	fuel, electricity, heat *bus.Bus
	etaEl, etaTh, etaCond   float64
	carrierCost             float64
}

// NewExtractionTurbine validates cfg and returns the unit.
func NewExtractionTurbine(cfg ExtractionConfig) (*ExtractionTurbine, error) {
	b, err := newBase(cfg.Common)
	if err != nil {
		return nil, err
	}
	if cfg.FuelBus == nil {
		return nil, errs.Invalid(cfg.Label, "fuel_bus", "bus is not set")
	}
	if cfg.ElectricityBus == nil {
		return nil, errs.Invalid(cfg.Label, "electricity_bus", "bus is not set")
	}
	if cfg.HeatBus == nil {
		return nil, errs.Invalid(cfg.Label, "heat_bus", "bus is not set")
	}
	etas := []struct {
		field string
		v     float64
	}{
		{"electric_efficiency", cfg.ElectricEfficiency},
		{"thermal_efficiency", cfg.ThermalEfficiency},
		{"condensing_efficiency", cfg.CondensingEfficiency},
	}
	for _, eta := range etas {
		if !finite(eta.v) || eta.v <= 0 {
			return nil, errs.Invalid(cfg.Label, eta.field, "must be > 0, got %v", eta.v)
		}
	}
	if cfg.CondensingEfficiency < cfg.ElectricEfficiency {
		return nil, errs.Invalid(cfg.Label, "condensing_efficiency",
			"%v is below electric_efficiency %v", cfg.CondensingEfficiency, cfg.ElectricEfficiency)
	}
	if !finite(cfg.CarrierCost) || cfg.CarrierCost < 0 {
		return nil, errs.Invalid(cfg.Label, "carrier_cost", "must be finite and >= 0, got %v", cfg.CarrierCost)
	}
	return &ExtractionTurbine{
		base:        b,
		fuel:        cfg.FuelBus,
		electricity: cfg.ElectricityBus,
		heat:        cfg.HeatBus,
		etaEl:       cfg.ElectricEfficiency,
		etaTh:       cfg.ThermalEfficiency,
		etaCond:     cfg.CondensingEfficiency,
		carrierCost: cfg.CarrierCost,
	}, nil
}

// Ports returns the fuel input and the two outputs.
func (u *ExtractionTurbine) Ports() []bus.Port {
	return []bus.Port{
		{Bus: u.fuel, Role: bus.FuelInput},
		{Bus: u.electricity, Role: bus.ElectricityOutput},
		{Bus: u.heat, Role: bus.HeatOutput},
	}
}

// Beta is the electricity lost per unit of heat extracted.
func (u *ExtractionTurbine) Beta() float64 {
	return (u.etaCond - u.etaEl) / u.etaTh
}

// DeclareVariables adds fuel[t], electricity[t], heat[t] and the invest variable.
func (u *ExtractionTurbine) DeclareVariables(b *lp.Builder, h timeindex.Horizon) (*Declaration, error) {
	d := newDeclaration(u)
	c, err := u.declareInvest(b, d, Invest)
	if err != nil {
		return nil, err
	}
	unbounded := func(int) float64 { return math.Inf(1) }
	fuel, err := b.AddSeries(u.seriesName(FuelFlow), h.Len(), 0, unbounded)
	if err != nil {
		return nil, err
	}
	el, err := b.AddSeries(u.seriesName(ElectricityFlow), h.Len(), 0, func(int) float64 {
		return c.bound(1)
	})
	if err != nil {
		return nil, err
	}
	heat, err := b.AddSeries(u.seriesName(HeatFlow), h.Len(), 0, unbounded)
	if err != nil {
		return nil, err
	}
	d.Series[FuelFlow] = fuel
	d.Series[ElectricityFlow] = el
	d.Series[HeatFlow] = heat
	d.Flows = []BusFlow{
		{Bus: u.fuel, Into: false, Vars: fuel},
		{Bus: u.electricity, Into: true, Vars: el},
		{Bus: u.heat, Into: true, Vars: heat},
	}
	return d, nil
}

// DeclareConstraints adds, per timestep:
//
//	η_cond·fuel − el − β·heat = 0
//	η_th·el − η_el·heat ≥ 0
//	el ≤ capacity
func (u *ExtractionTurbine) DeclareConstraints(b *lp.Builder, d *Declaration, h timeindex.Horizon) error {
	c := u.capacityOf(d)
	beta := u.Beta()
	fuel, el, heat := d.Series[FuelFlow], d.Series[ElectricityFlow], d.Series[HeatFlow]
	for t := 0; t < h.Len(); t++ {
		relation := []lp.Term{lp.T(u.etaCond, fuel[t]), lp.T(-1, el[t]), lp.T(-beta, heat[t])}
		if _, err := b.AddRow(u.rowName("extraction", t), relation, lp.EQ, 0); err != nil {
			return err
		}
		backpressure := []lp.Term{lp.T(u.etaTh, el[t]), lp.T(-u.etaEl, heat[t])}
		if _, err := b.AddRow(u.rowName("backpressure", t), backpressure, lp.GE, 0); err != nil {
			return err
		}
		if err := c.limit(b, u.rowName("capacity", t), el[t], 1); err != nil {
			return err
		}
	}
	return nil
}

// ObjectiveTerms prices investment, electricity output and fuel.
func (u *ExtractionTurbine) ObjectiveTerms(d *Declaration, h timeindex.Horizon) []lp.Term {
	terms := u.investCost(u.capacityOf(d))
	terms = append(terms, u.dispatchCost(d.Series[ElectricityFlow], u.common.MarginalCost)...)
	return append(terms, u.dispatchCost(d.Series[FuelFlow], u.carrierCost)...)
}
