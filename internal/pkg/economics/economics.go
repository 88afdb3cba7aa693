/*
economics.go converts one-time technology costs into the annualized cost
coefficients used by the model objective.
*/

package economics

import (
	"math"

	"github.com/ohowland/cgc_planner/internal/pkg/errs"
)

// Costs is one row of the costs table. Label is only used to annotate errors.
type Costs struct {
	Label               string
	Capex               float64 // currency per unit capacity
	Lifetime            float64 // years
	WACC                float64 // fraction
	FOM                 float64 // currency per unit capacity per year
	VOM                 float64 // currency per unit energy
	CarrierCost         float64 // currency per unit fuel energy
	StorageCapacityCost float64 // currency per unit storage energy
}

// Annuity returns the constant annual payment equivalent to capex, given the
// asset lifetime and discount rate. A zero rate spreads capex evenly.
func Annuity(capex, lifetime, wacc float64) (float64, error) {
	switch {
	case !finite(capex) || capex < 0:
		return 0, errs.Invalid("", "capex", "capex must be finite and >= 0, got %v", capex)
	case !finite(lifetime) || lifetime <= 0:
		return 0, errs.Invalid("", "lifetime", "lifetime must be finite and > 0, got %v", lifetime)
	case !finite(wacc) || wacc < 0:
		return 0, errs.Invalid("", "wacc", "wacc must be finite and >= 0, got %v", wacc)
	}

	if wacc == 0 {
		return capex / lifetime, nil
	}

	growth := math.Pow(1+wacc, lifetime)
	return capex * wacc * growth / (growth - 1), nil
}

// CapacityCost is the annualized cost per unit of power capacity: the annuity
// of capex plus fixed operation and maintenance.
func CapacityCost(c Costs) (float64, error) {
	a, err := Annuity(c.Capex, c.Lifetime, c.WACC)
	if err != nil {
		return 0, label(err, c.Label)
	}
	if !finite(c.FOM) || c.FOM < 0 {
		return 0, errs.Invalid(c.Label, "fom", "fom must be finite and >= 0, got %v", c.FOM)
	}
	return a + c.FOM, nil
}

// PowerCapacityCost is the annuity of capex alone. Storages book their fixed
// O&M on the energy side, see StorageCapacityCost.
func PowerCapacityCost(c Costs) (float64, error) {
	a, err := Annuity(c.Capex, c.Lifetime, c.WACC)
	if err != nil {
		return 0, label(err, c.Label)
	}
	return a, nil
}

// StorageCapacityCost is the annualized cost per unit of storage energy capacity.
func StorageCapacityCost(c Costs) (float64, error) {
	a, err := Annuity(c.StorageCapacityCost, c.Lifetime, c.WACC)
	if err != nil {
		return 0, label(relabel(err, "storage_capacity_cost"), c.Label)
	}
	if !finite(c.FOM) || c.FOM < 0 {
		return 0, errs.Invalid(c.Label, "fom", "fom must be finite and >= 0, got %v", c.FOM)
	}
	return a + c.FOM, nil
}

// MarginalCost is the variable cost per unit of output energy. Fuel-derived
// technologies add the carrier cost divided by conversion efficiency.
func MarginalCost(vom, carrierCost, efficiency float64) (float64, error) {
	if !finite(vom) {
		return 0, errs.Invalid("", "vom", "vom must be finite, got %v", vom)
	}
	if !finite(carrierCost) || carrierCost < 0 {
		return 0, errs.Invalid("", "carrier_cost", "carrier_cost must be finite and >= 0, got %v", carrierCost)
	}
	if carrierCost == 0 {
		return vom, nil
	}
	if !finite(efficiency) || efficiency <= 0 {
		return 0, errs.Invalid("", "efficiency", "efficiency must be > 0 for a fuel-derived cost, got %v", efficiency)
	}
	return vom + carrierCost/efficiency, nil
}

// TechMarginalCost applies MarginalCost to a costs row.
func TechMarginalCost(c Costs, efficiency float64) (float64, error) {
	m, err := MarginalCost(c.VOM, c.CarrierCost, efficiency)
	if err != nil {
		return 0, label(err, c.Label)
	}
	return m, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func label(err error, unit string) error {
	if e, ok := err.(*errs.Error); ok && e.Unit == "" {
		e.Unit = unit
	}
	return err
}

func relabel(err error, field string) error {
	if e, ok := err.(*errs.Error); ok && e.Field == "capex" {
		e.Field = field
	}
	return err
}
