package scenario

import (
	"errors"
	"fmt"

	"github.com/ohowland/cgc_planner/internal/pkg/asset"
	"github.com/ohowland/cgc_planner/internal/pkg/bus"
	"github.com/ohowland/cgc_planner/internal/pkg/data"
	"github.com/ohowland/cgc_planner/internal/pkg/economics"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"gonum.org/v1/gonum/floats"
)

// Column names of the costs table.
const (
	ColCapex               = "capex"
	ColLifetime            = "lifetime"
	ColWACC                = "wacc"
	ColFOM                 = "fom"
	ColVOM                 = "vom"
	ColCarrierCost         = "carrier_cost"
	ColStorageCapacityCost = "storage_capacity_cost"
)

// Column names of the capacity table.
const (
	ColCapacity                 = "capacity"
	ColCapacityPotential        = "capacity_potential"
	ColStorageCapacity          = "storage_capacity"
	ColStorageCapacityPotential = "storage_capacity_potential"
	ColEfficiency               = "efficiency"
	ColElectricEfficiency       = "electric_efficiency"
	ColThermalEfficiency        = "thermal_efficiency"
	ColCondensingEfficiency     = "condensing_efficiency"
	ColLoss                     = "loss"
	ColMaxHours                 = "max_hours"
	ColAmount                   = "amount"
)

type wiring struct {
	in  Inputs
	net *bus.Network
}

func (w wiring) unit(s UnitSpec) (asset.Unit, error) {
	if s.Label == "" {
		return nil, errs.Invalid("", "label", "unit has no label")
	}
	switch s.Type {
	case TypeVolatile:
		return w.volatile(s)
	case TypeCommodity:
		return w.commodity(s)
	case TypeConversion:
		return w.conversion(s)
	case TypeExtraction:
		return w.extraction(s)
	case TypeReservoir:
		return w.reservoir(s)
	case TypeStorage:
		return w.storage(s)
	case TypeLoad:
		return w.load(s)
	case TypeExcess:
		return w.excess(s)
	}
	return nil, errs.Invalid(s.Label, "type", "unknown unit type %q", s.Type)
}

func (w wiring) volatile(s UnitSpec) (asset.Unit, error) {
	c, err := w.common(s, economics.CapacityCost)
	if err != nil {
		return nil, err
	}
	b, err := w.bus(s, "bus", s.Bus)
	if err != nil {
		return nil, err
	}
	p, err := w.profile(s)
	if err != nil {
		return nil, err
	}
	return asset.NewVolatile(asset.VolatileConfig{Common: c, Bus: b, Profile: p})
}

func (w wiring) commodity(s UnitSpec) (asset.Unit, error) {
	c, err := w.common(s, economics.CapacityCost)
	if err != nil {
		return nil, err
	}
	b, err := w.bus(s, "bus", s.Bus)
	if err != nil {
		return nil, err
	}
	amount, err := w.amount(s)
	if err != nil {
		return nil, err
	}
	return asset.NewCommodity(asset.CommodityConfig{Common: c, Bus: b, Amount: amount})
}

func (w wiring) conversion(s UnitSpec) (asset.Unit, error) {
	c, err := w.common(s, economics.CapacityCost)
	if err != nil {
		return nil, err
	}
	from, err := w.bus(s, "from_bus", s.FromBus)
	if err != nil {
		return nil, err
	}
	to, err := w.bus(s, "to_bus", s.ToBus)
	if err != nil {
		return nil, err
	}
	eff, err := w.capacityValue(s, ColEfficiency)
	if err != nil {
		return nil, err
	}
	return asset.NewConversion(asset.ConversionConfig{Common: c, From: from, To: to, Efficiency: eff})
}

// extraction books carrier cost on fuel, so the electricity marginal cost
// only carries vom unless overridden.
func (w wiring) extraction(s UnitSpec) (asset.Unit, error) {
	c, err := w.common(s, economics.CapacityCost)
	if err != nil {
		return nil, err
	}
	costs, err := w.costs(s, false, ColCapex)
	if err != nil {
		return nil, err
	}
	if s.MarginalCost == nil {
		c.MarginalCost = costs.VOM
	}

	cfg := asset.ExtractionConfig{Common: c, CarrierCost: costs.CarrierCost}
	if cfg.FuelBus, err = w.bus(s, "fuel_bus", s.FuelBus); err != nil {
		return nil, err
	}
	if cfg.ElectricityBus, err = w.bus(s, "electricity_bus", s.ElectricityBus); err != nil {
		return nil, err
	}
	if cfg.HeatBus, err = w.bus(s, "heat_bus", s.HeatBus); err != nil {
		return nil, err
	}
	if cfg.ElectricEfficiency, err = w.capacityValue(s, ColElectricEfficiency); err != nil {
		return nil, err
	}
	if cfg.ThermalEfficiency, err = w.capacityValue(s, ColThermalEfficiency); err != nil {
		return nil, err
	}
	if cfg.CondensingEfficiency, err = w.capacityValue(s, ColCondensingEfficiency); err != nil {
		return nil, err
	}
	return asset.NewExtractionTurbine(cfg)
}

func (w wiring) reservoir(s UnitSpec) (asset.Unit, error) {
	c, err := w.common(s, economics.PowerCapacityCost)
	if err != nil {
		return nil, err
	}
	params, err := w.storageParams(s)
	if err != nil {
		return nil, err
	}
	b, err := w.bus(s, "bus", s.Bus)
	if err != nil {
		return nil, err
	}
	p, err := w.profile(s)
	if err != nil {
		return nil, err
	}
	return asset.NewReservoir(asset.ReservoirConfig{Common: c, StorageParams: params, Bus: b, Profile: p})
}

func (w wiring) storage(s UnitSpec) (asset.Unit, error) {
	c, err := w.common(s, economics.PowerCapacityCost)
	if err != nil {
		return nil, err
	}
	params, err := w.storageParams(s)
	if err != nil {
		return nil, err
	}
	b, err := w.bus(s, "bus", s.Bus)
	if err != nil {
		return nil, err
	}
	return asset.NewStorage(asset.StorageConfig{Common: c, StorageParams: params, Bus: b})
}

func (w wiring) load(s UnitSpec) (asset.Unit, error) {
	b, err := w.bus(s, "bus", s.Bus)
	if err != nil {
		return nil, err
	}
	amount, err := w.amount(s)
	if err != nil {
		return nil, err
	}
	p, err := w.profile(s)
	if err != nil {
		return nil, err
	}
	if amount, err = w.keptShare(s, amount, p); err != nil {
		return nil, err
	}
	return asset.NewLoad(asset.LoadConfig{
		Label:   s.Label,
		Carrier: s.Carrier,
		Tech:    s.Tech,
		Bus:     b,
		Amount:  amount,
		Profile: p,
	})
}

func (w wiring) excess(s UnitSpec) (asset.Unit, error) {
	b, err := w.bus(s, "bus", s.Bus)
	if err != nil {
		return nil, err
	}
	costs, err := w.costs(s, false, ColCapex)
	if err != nil {
		return nil, err
	}
	mc := costs.VOM
	if s.MarginalCost != nil {
		mc = *s.MarginalCost
	}
	return asset.NewExcess(asset.ExcessConfig{Label: s.Label, Bus: b, MarginalCost: mc})
}

// common fills the shared fields. capacityCost annualizes the costs row for
// expandable units, and for fixed ones whose row carries a capex.
func (w wiring) common(s UnitSpec, capacityCost func(economics.Costs) (float64, error)) (asset.Common, error) {
	c := asset.Common{
		Label:      s.Label,
		Carrier:    s.Carrier,
		Tech:       s.Tech,
		Expandable: s.Expandable,
	}
	var err error
	if c.Capacity, err = w.optional(w.in.Capacity, s, s.Capacity, ColCapacity, 0); err != nil {
		return c, err
	}
	if w.has(w.in.Capacity, s.Capacity, ColCapacityPotential) {
		v, _ := w.in.Capacity.Get(s.Capacity, ColCapacityPotential)
		c.CapacityPotential = asset.Float(v)
	}

	if s.Costs != "" {
		annualize := s.Expandable || w.has(w.in.Costs, s.Costs, ColCapex)
		costs, err := w.costs(s, annualize, ColCapex)
		if err != nil {
			return c, err
		}
		if annualize {
			cc, err := capacityCost(costs)
			if err != nil {
				return c, relabel(err, s.Label)
			}
			c.CapacityCost = asset.Float(cc)
		}
		eff, err := w.optional(w.in.Capacity, s, s.Capacity, ColEfficiency, 1)
		if err != nil {
			return c, err
		}
		if c.MarginalCost, err = economics.TechMarginalCost(costs, eff); err != nil {
			return c, relabel(err, s.Label)
		}
	}
	if s.MarginalCost != nil {
		c.MarginalCost = *s.MarginalCost
	}
	return c, nil
}

func (w wiring) storageParams(s UnitSpec) (asset.StorageParams, error) {
	p := asset.StorageParams{InitialLevel: s.InitialLevel, Balanced: true}
	if s.Balanced != nil {
		p.Balanced = *s.Balanced
	}
	var err error
	if p.StorageCapacity, err = w.optional(w.in.Capacity, s, s.Capacity, ColStorageCapacity, 0); err != nil {
		return p, err
	}
	if w.has(w.in.Capacity, s.Capacity, ColStorageCapacityPotential) {
		v, _ := w.in.Capacity.Get(s.Capacity, ColStorageCapacityPotential)
		p.StorageCapacityPotential = asset.Float(v)
	}
	if p.Efficiency, err = w.capacityValue(s, ColEfficiency); err != nil {
		return p, err
	}
	if p.Loss, err = w.optional(w.in.Capacity, s, s.Capacity, ColLoss, 0); err != nil {
		return p, err
	}
	if p.MaxHours, err = w.optional(w.in.Capacity, s, s.Capacity, ColMaxHours, 0); err != nil {
		return p, err
	}

	if s.Costs != "" && (s.Expandable || w.has(w.in.Costs, s.Costs, ColStorageCapacityCost)) {
		costs, err := w.costs(s, true, ColStorageCapacityCost)
		if err != nil {
			return p, err
		}
		sc, err := economics.StorageCapacityCost(costs)
		if err != nil {
			return p, relabel(err, s.Label)
		}
		p.StorageCapacityCost = asset.Float(sc)
	}
	return p, nil
}

// costs reads the unit's costs row. The annuity inputs are required when
// annualize is set; every other column defaults to zero.
func (w wiring) costs(s UnitSpec, annualize bool, capexCol string) (economics.Costs, error) {
	c := economics.Costs{Label: s.Label}
	if s.Costs == "" {
		return c, nil
	}
	if w.in.Costs == nil {
		return c, errs.Invalid(s.Label, "costs", "no costs table loaded for row %q", s.Costs)
	}
	read := func(col string, required bool) (float64, error) {
		if required {
			v, err := w.in.Costs.Get(s.Costs, col)
			return v, relabel(err, s.Label)
		}
		return w.optional(w.in.Costs, s, s.Costs, col, 0)
	}

	var err error
	if capexCol == ColCapex {
		if c.Capex, err = read(ColCapex, annualize); err != nil {
			return c, err
		}
	} else if c.StorageCapacityCost, err = read(capexCol, annualize); err != nil {
		return c, err
	}
	if c.Lifetime, err = read(ColLifetime, annualize); err != nil {
		return c, err
	}
	if c.WACC, err = read(ColWACC, annualize); err != nil {
		return c, err
	}
	if c.FOM, err = read(ColFOM, false); err != nil {
		return c, err
	}
	if c.VOM, err = read(ColVOM, false); err != nil {
		return c, err
	}
	if c.CarrierCost, err = read(ColCarrierCost, false); err != nil {
		return c, err
	}
	return c, nil
}

// optional reads a cell, falling back to def when the row key is empty or the
// cell is missing.
func (w wiring) optional(t *data.Table, s UnitSpec, row, col string, def float64) (float64, error) {
	if !w.has(t, row, col) {
		return def, nil
	}
	v, err := t.Get(row, col)
	return v, relabel(err, s.Label)
}

func (w wiring) has(t *data.Table, row, col string) bool {
	return row != "" && t != nil && t.Has(row, col)
}

// capacityValue reads a required cell from the capacity table.
func (w wiring) capacityValue(s UnitSpec, col string) (float64, error) {
	if s.Capacity == "" || w.in.Capacity == nil {
		return 0, errs.Invalid(s.Label, col, "unit has no capacity row to read %s from", col)
	}
	v, err := w.in.Capacity.Get(s.Capacity, col)
	return v, relabel(err, s.Label)
}

func (w wiring) amount(s UnitSpec) (float64, error) {
	if s.Amount != nil {
		return *s.Amount, nil
	}
	return w.capacityValue(s, ColAmount)
}

func (w wiring) profile(s UnitSpec) ([]float64, error) {
	if s.Profile == "" {
		return nil, errs.Invalid(s.Label, "profile", "no profile series named")
	}
	p, err := w.in.Series.Series(s.Profile)
	if err != nil {
		return nil, errs.Invalid(s.Label, "profile", "%v", err)
	}
	return p, nil
}

// keptShare scales amount by the fraction of the full profile that falls in
// the kept hours. It returns amount unchanged for an untruncated horizon.
func (w wiring) keptShare(s UnitSpec, amount float64, kept []float64) (float64, error) {
	if w.in.Full == nil || amount == 0 {
		return amount, nil
	}
	full, err := w.in.Full.Series(s.Profile)
	if err != nil {
		return 0, errs.Invalid(s.Label, "profile", "%v", err)
	}
	total := floats.Sum(full)
	if total <= 0 {
		return amount, nil
	}
	return amount * floats.Sum(kept) / total, nil
}

func (w wiring) bus(s UnitSpec, field, name string) (*bus.Bus, error) {
	if name == "" {
		return nil, errs.Invalid(s.Label, field, "bus is not set")
	}
	b, ok := w.net.Bus(name)
	if !ok {
		return nil, errs.Build(s.Label, name, fmt.Errorf("%s %q is not declared", field, name))
	}
	return b, nil
}

// relabel points a table or cost error at the unit instead of the table row.
func relabel(err error, label string) error {
	var e *errs.Error
	if errors.As(err, &e) {
		e.Unit = label
	}
	return err
}
