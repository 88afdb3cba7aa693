package economics

import (
	"errors"
	"math"
	"testing"

	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"gotest.tools/v3/assert"
)

func TestAnnuityZeroRate(t *testing.T) {
	a, err := Annuity(1000, 20, 0)
	assert.NilError(t, err)
	assert.Equal(t, a, 50.0)
}

func TestAnnuityPositiveRateExceedsStraightLine(t *testing.T) {
	cases := []struct {
		capex, lifetime, wacc float64
	}{
		{1000, 20, 0.07},
		{1, 1, 0.5},
		{250000, 40, 0.01},
		{3.5e6, 25, 0.12},
	}

	for _, c := range cases {
		a, err := Annuity(c.capex, c.lifetime, c.wacc)
		assert.NilError(t, err)
		assert.Assert(t, a > c.capex/c.lifetime, "annuity %v not above straight line for %+v", a, c)
	}
}

func TestAnnuityKnownValue(t *testing.T) {
	// 1000 over 10 years at 5%: 129.5045...
	a, err := Annuity(1000, 10, 0.05)
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(a-129.50457496545667) < 1e-9, "got %v", a)
}

func TestAnnuityOneYearIsCapexPlusInterest(t *testing.T) {
	a, err := Annuity(100, 1, 0.1)
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(a-110) < 1e-9, "got %v", a)
}

func TestAnnuityZeroCapex(t *testing.T) {
	a, err := Annuity(0, 10, 0.05)
	assert.NilError(t, err)
	assert.Equal(t, a, 0.0)
}

func TestAnnuityRejectsOutOfDomain(t *testing.T) {
	cases := []struct {
		name                  string
		capex, lifetime, wacc float64
		field                 string
	}{
		{"zero lifetime", 100, 0, 0.05, "lifetime"},
		{"negative lifetime", 100, -3, 0.05, "lifetime"},
		{"negative wacc", 100, 10, -0.01, "wacc"},
		{"negative capex", -1, 10, 0.05, "capex"},
		{"nan capex", math.NaN(), 10, 0.05, "capex"},
		{"inf lifetime", 100, math.Inf(1), 0.05, "lifetime"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Annuity(c.capex, c.lifetime, c.wacc)
			assert.Assert(t, errors.Is(err, errs.ErrInvalidParameter))
			var e *errs.Error
			assert.Assert(t, errors.As(err, &e))
			assert.Equal(t, e.Field, c.field)
		})
	}
}

func TestCapacityCostAddsFOM(t *testing.T) {
	c := Costs{Label: "onshore", Capex: 1000, Lifetime: 20, WACC: 0, FOM: 7}
	cc, err := CapacityCost(c)
	assert.NilError(t, err)
	assert.Equal(t, cc, 57.0)
}

func TestCapacityCostLabelsError(t *testing.T) {
	c := Costs{Label: "pv", Capex: 1000, Lifetime: 0}
	_, err := CapacityCost(c)
	var e *errs.Error
	assert.Assert(t, errors.As(err, &e))
	assert.Equal(t, e.Unit, "pv")
	assert.Equal(t, e.Kind, errs.InvalidParameter)
}

func TestStorageCapacityCost(t *testing.T) {
	c := Costs{Label: "li-ion", Capex: 1, StorageCapacityCost: 400, Lifetime: 10, FOM: 2}
	sc, err := StorageCapacityCost(c)
	assert.NilError(t, err)
	assert.Equal(t, sc, 42.0)

	pc, err := PowerCapacityCost(c)
	assert.NilError(t, err)
	assert.Equal(t, pc, 0.1)
}

func TestStorageCapacityCostRelabelsField(t *testing.T) {
	c := Costs{Label: "tes", StorageCapacityCost: -5, Lifetime: 10}
	_, err := StorageCapacityCost(c)
	var e *errs.Error
	assert.Assert(t, errors.As(err, &e))
	assert.Equal(t, e.Field, "storage_capacity_cost")
	assert.Equal(t, e.Unit, "tes")
}

func TestMarginalCost(t *testing.T) {
	m, err := MarginalCost(2, 0, 0)
	assert.NilError(t, err)
	assert.Equal(t, m, 2.0)

	m, err = MarginalCost(2, 30, 0.5)
	assert.NilError(t, err)
	assert.Equal(t, m, 62.0)

	_, err = MarginalCost(2, 30, 0)
	assert.Assert(t, errors.Is(err, errs.ErrInvalidParameter))
}
