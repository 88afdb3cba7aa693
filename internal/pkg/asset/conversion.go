package asset

import (
	"math"

	"github.com/ohowland/cgc_planner/internal/pkg/bus"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/lp"
	"github.com/ohowland/cgc_planner/internal/pkg/timeindex"
)

// ConversionConfig configures a one-input, one-output converter such as a heat pump.
type ConversionConfig struct {
	Common
	From        *bus.Bus
	To          *bus.Bus
	Efficiency  float64
	CarrierCost float64 // per unit of input energy
}

// Conversion turns input from one bus into efficiency × input on another.
// Capacity limits the output.
type Conversion struct {
	base
	from        *bus.Bus
	to          *bus.Bus
	efficiency  float64
	carrierCost float64
}

// NewConversion validates cfg and returns the unit.
func NewConversion(cfg ConversionConfig) (*Conversion, error) {
	b, err := newBase(cfg.Common)
	if err != nil {
		return nil, err
	}
	if cfg.From == nil {
		return nil, errs.Invalid(cfg.Label, "from_bus", "bus is not set")
	}
	if cfg.To == nil {
		return nil, errs.Invalid(cfg.Label, "to_bus", "bus is not set")
	}
	if cfg.From == cfg.To {
		return nil, errs.Invalid(cfg.Label, "to_bus", "input and output bus are the same")
	}
	if !finite(cfg.Efficiency) || cfg.Efficiency <= 0 {
		return nil, errs.Invalid(cfg.Label, "efficiency", "must be > 0, got %v", cfg.Efficiency)
	}
	if !finite(cfg.CarrierCost) || cfg.CarrierCost < 0 {
		return nil, errs.Invalid(cfg.Label, "carrier_cost", "must be finite and >= 0, got %v", cfg.CarrierCost)
	}
	return &Conversion{
		base:        b,
		from:        cfg.From,
		to:          cfg.To,
		efficiency:  cfg.Efficiency,
		carrierCost: cfg.CarrierCost,
	}, nil
}

// Ports returns the input and output ports.
func (u *Conversion) Ports() []bus.Port {
	return []bus.Port{
		{Bus: u.from, Role: bus.Input},
		{Bus: u.to, Role: bus.AnyOutput},
	}
}

// DeclareVariables adds input[t], output[t] and the invest variable.
func (u *Conversion) DeclareVariables(b *lp.Builder, h timeindex.Horizon) (*Declaration, error) {
	d := newDeclaration(u)
	c, err := u.declareInvest(b, d, Invest)
	if err != nil {
		return nil, err
	}
	in, err := b.AddSeries(u.seriesName(InputFlow), h.Len(), 0, func(int) float64 {
		return math.Inf(1)
	})
	if err != nil {
		return nil, err
	}
	out, err := b.AddSeries(u.seriesName(OutputFlow), h.Len(), 0, func(int) float64 {
		return c.bound(1)
	})
	if err != nil {
		return nil, err
	}
	d.Series[InputFlow] = in
	d.Series[OutputFlow] = out
	d.Flows = []BusFlow{
		{Bus: u.from, Into: false, Vars: in},
		{Bus: u.to, Into: true, Vars: out},
	}
	return d, nil
}

// DeclareConstraints adds output[t] = efficiency × input[t] and the capacity limit.
func (u *Conversion) DeclareConstraints(b *lp.Builder, d *Declaration, h timeindex.Horizon) error {
	c := u.capacityOf(d)
	in, out := d.Series[InputFlow], d.Series[OutputFlow]
	for t := 0; t < h.Len(); t++ {
		terms := []lp.Term{lp.T(1, out[t]), lp.T(-u.efficiency, in[t])}
		if _, err := b.AddRow(u.rowName("conversion", t), terms, lp.EQ, 0); err != nil {
			return err
		}
		if err := c.limit(b, u.rowName("capacity", t), out[t], 1); err != nil {
			return err
		}
	}
	return nil
}

// ObjectiveTerms prices investment, output and input carrier.
func (u *Conversion) ObjectiveTerms(d *Declaration, h timeindex.Horizon) []lp.Term {
	terms := u.investCost(u.capacityOf(d))
	terms = append(terms, u.dispatchCost(d.Series[OutputFlow], u.common.MarginalCost)...)
	return append(terms, u.dispatchCost(d.Series[InputFlow], u.carrierCost)...)
}

// Efficiency is output per unit of input.
func (u *Conversion) Efficiency() float64 {
	return u.efficiency
}
