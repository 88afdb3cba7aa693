package asset

import (
	"fmt"
	"math"

	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/lp"
	"github.com/ohowland/cgc_planner/internal/pkg/timeindex"
)

// StorageParams are the energy-side fields shared by Storage and Reservoir.
// Common.Capacity is the power rating; StorageCapacity is the energy rating.
type StorageParams struct {
	StorageCapacity          float64
	StorageCapacityPotential *float64 // nil is unbounded
	StorageCapacityCost      *float64 // annualized, per unit of energy
	Efficiency               float64  // applied on discharge
	Loss                     float64  // share of the level lost per timestep
	MaxHours                 float64  // energy/power ratio of new capacity, 0 leaves them independent
	InitialLevel             *float64 // share of energy capacity at t=0, nil is free
	Balanced                 bool     // final level equals initial level
}

func (p StorageParams) validate(label string) error {
	if !finite(p.StorageCapacity) || p.StorageCapacity < 0 {
		return errs.Invalid(label, "storage_capacity", "must be finite and >= 0, got %v", p.StorageCapacity)
	}
	if p.StorageCapacityPotential != nil {
		v := *p.StorageCapacityPotential
		if math.IsNaN(v) || v < 0 {
			return errs.Invalid(label, "storage_capacity_potential", "must be >= 0, got %v", v)
		}
	}
	if p.StorageCapacityCost != nil {
		v := *p.StorageCapacityCost
		if !finite(v) || v < 0 {
			return errs.Invalid(label, "storage_capacity_cost", "must be finite and >= 0, got %v", v)
		}
	}
	if !finite(p.Efficiency) || p.Efficiency <= 0 || p.Efficiency > 1 {
		return errs.Invalid(label, "efficiency", "must be in (0, 1], got %v", p.Efficiency)
	}
	if !finite(p.Loss) || p.Loss < 0 || p.Loss >= 1 {
		return errs.Invalid(label, "loss", "must be in [0, 1), got %v", p.Loss)
	}
	if !finite(p.MaxHours) || p.MaxHours < 0 {
		return errs.Invalid(label, "max_hours", "must be finite and >= 0, got %v", p.MaxHours)
	}
	if p.InitialLevel != nil {
		v := *p.InitialLevel
		if !finite(v) || v < 0 || v > 1 {
			return errs.Invalid(label, "initial_storage_level", "must be in [0, 1], got %v", v)
		}
	}
	return nil
}

// store is the state-of-charge machinery both storage archetypes share.
type store struct {
	params StorageParams
}

// declareEnergy adds the energy invest variable and the level series
// level_0..level_T, where level_0 is the level before the first timestep.
func (s store) declareEnergy(b base, bld *lp.Builder, d *Declaration, h timeindex.Horizon) (capacity, error) {
	label := b.common.Label
	e := capacity{existing: s.params.StorageCapacity, expandable: b.common.Expandable}
	if !e.expandable {
		if s.params.StorageCapacityCost != nil || s.params.StorageCapacityPotential != nil {
			d.warn("%s is not expandable; storage_capacity_cost and storage_capacity_potential are ignored", label)
		}
		d.Fixed[StorageCapacity] = e.existing
	} else {
		upper := math.Inf(1)
		if s.params.StorageCapacityPotential != nil {
			upper = *s.params.StorageCapacityPotential
		}
		v, err := bld.AddVar(fmt.Sprintf("%s_%s", StorageInvest, label), 0, upper)
		if err != nil {
			return e, err
		}
		e.invest = v
		d.Scalars[StorageInvest] = v
		d.Fixed[ExistingStorage] = e.existing
		if !math.IsInf(upper, 1) {
			d.Fixed[MaximumStorageEnergy] = e.existing + upper
		}
	}

	level, err := bld.AddSeries(b.seriesName(Level), h.Len()+1, 0, func(t int) float64 {
		return e.bound(1)
	})
	if err != nil {
		return e, err
	}
	d.Series[Level] = level
	return e, nil
}

func (s store) energyOf(b base, d *Declaration) capacity {
	e := capacity{existing: s.params.StorageCapacity, expandable: b.common.Expandable}
	if v, ok := d.Scalars[StorageInvest]; ok {
		e.invest = v
	}
	return e
}

// declareState adds, for t in [0, T):
//
//	level[t+1] − (1−loss)·level[t] − in[t] + out[t]/efficiency = 0
//
// plus the level limit, the initial level, the periodic balance and the
// power/energy investment link.
func (s store) declareState(b base, bld *lp.Builder, d *Declaration, in, out []lp.Var, h timeindex.Horizon) error {
	e := s.energyOf(b, d)
	p := b.capacityOf(d)
	level := d.Series[Level]
	keep := 1 - s.params.Loss

	for t := 0; t < h.Len(); t++ {
		terms := []lp.Term{
			lp.T(1, level[t+1]),
			lp.T(-keep, level[t]),
			lp.T(-1, in[t]),
			lp.T(1/s.params.Efficiency, out[t]),
		}
		if _, err := bld.AddRow(b.rowName("storage_balance", t), terms, lp.EQ, 0); err != nil {
			return err
		}
	}
	for t, v := range level {
		if err := e.limit(bld, b.rowName("storage_level", t), v, 1); err != nil {
			return err
		}
	}

	if s.params.InitialLevel != nil {
		frac := *s.params.InitialLevel
		terms := []lp.Term{lp.T(1, level[0])}
		if e.expandable {
			terms = append(terms, lp.T(-frac, e.invest))
		}
		if _, err := bld.AddRow(b.seriesName("initial_level"), terms, lp.EQ, frac*e.existing); err != nil {
			return err
		}
	}
	if s.params.Balanced {
		terms := []lp.Term{lp.T(1, level[h.Len()]), lp.T(-1, level[0])}
		if _, err := bld.AddRow(b.seriesName("balanced_level"), terms, lp.EQ, 0); err != nil {
			return err
		}
	}
	if e.expandable && s.params.MaxHours > 0 {
		terms := []lp.Term{lp.T(1, p.invest), lp.T(-1/s.params.MaxHours, e.invest)}
		if _, err := bld.AddRow(b.seriesName("invest_ratio"), terms, lp.EQ, 0); err != nil {
			return err
		}
	}
	return nil
}

func (s store) energyCost(e capacity) []lp.Term {
	if !e.expandable || s.params.StorageCapacityCost == nil || *s.params.StorageCapacityCost == 0 {
		return nil
	}
	return []lp.Term{lp.T(*s.params.StorageCapacityCost, e.invest)}
}
