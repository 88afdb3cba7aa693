package scenario

import (
	"errors"
	"strings"
	"testing"

	"github.com/ohowland/cgc_planner/internal/pkg/asset"
	"github.com/ohowland/cgc_planner/internal/pkg/data"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/model"
	"gotest.tools/v3/assert"
)

const testCosts = `technology,capex,lifetime,wacc,fom,vom,carrier_cost,storage_capacity_cost
pv,1000,20,0,10,0,,
biomass,2000,20,0,20,1,30,
ashp,500,25,0,5,0,,
li-ion,400,10,0,5,0,,200
excess,,,,,0.5,,
broken,100,,0,,,,
`

const testCapacity = `technology,capacity,capacity_potential,storage_capacity,storage_capacity_potential,efficiency,electric_efficiency,thermal_efficiency,condensing_efficiency,loss,max_hours,amount
pv,5,100,,,1,,,,,,
chp,0,,,,,0.3,0.5,0.4,,,
ashp,0,,,,3,,,,,,
li-ion,0,50,0,200,0.95,,,,0.01,4,
bm,,,,,,,,,,,1000
electricity,,,,,,,,,,,30
heat,,,,,,,,,,,20
`

const testSeries = `timeindex,pv,electricity,heat
2030-01-01T00:00:00Z,0,1,2
2030-01-01T01:00:00Z,0.5,2,1
2030-01-01T02:00:00Z,1,1,1
`

const testScenario = `
name: test
buses:
  - {name: elec, carrier: electricity}
  - {name: heat, carrier: heat}
  - {name: fuel, carrier: fuel}
units:
  - {label: pv, type: volatile, carrier: solar, tech: pv, bus: elec, costs: pv, capacity: pv, profile: pv, expandable: true}
  - {label: bm, type: commodity, carrier: fuel, tech: commodity, bus: fuel, capacity: bm}
  - label: chp
    type: extraction
    carrier: biomass
    tech: ext
    fuel_bus: fuel
    electricity_bus: elec
    heat_bus: heat
    costs: biomass
    capacity: chp
    expandable: true
  - {label: ashp, type: conversion, carrier: electricity, tech: ashp, from_bus: elec, to_bus: heat, costs: ashp, capacity: ashp, expandable: true}
  - {label: battery, type: storage, carrier: li-ion, tech: battery, bus: elec, costs: li-ion, capacity: li-ion, expandable: true}
  - {label: demand, type: load, carrier: electricity, bus: elec, capacity: electricity, profile: electricity}
  - {label: space, type: load, carrier: heat, bus: heat, capacity: heat, profile: heat}
  - {label: excess, type: excess, bus: elec, costs: excess}
  - {label: excess_heat, type: excess, bus: heat, marginal_cost: 0.25}
  - {label: excess_fuel, type: excess, bus: fuel}
`

func inputs(t *testing.T) Inputs {
	t.Helper()
	costs, err := data.LoadTable(strings.NewReader(testCosts))
	assert.NilError(t, err)
	capacity, err := data.LoadTable(strings.NewReader(testCapacity))
	assert.NilError(t, err)
	series, err := data.LoadTimeseries(strings.NewReader(testSeries), nil)
	assert.NilError(t, err)
	return Inputs{Costs: costs, Capacity: capacity, Series: series}
}

func load(t *testing.T) *Scenario {
	t.Helper()
	s, err := Load(strings.NewReader(testScenario))
	assert.NilError(t, err)
	return s
}

func unitByLabel(t *testing.T, sys *System, label string) asset.Unit {
	t.Helper()
	for _, u := range sys.Units {
		if u.Label() == label {
			return u
		}
	}
	t.Fatalf("no unit %q", label)
	return nil
}

func TestBuildSystem(t *testing.T) {
	sys, err := load(t).Build(inputs(t))
	assert.NilError(t, err)
	assert.Equal(t, sys.Name, "test")
	assert.Equal(t, len(sys.Units), 10)
	assert.Equal(t, len(sys.Network.Buses()), 3)
	assert.Equal(t, sys.Horizon.Len(), 3)

	pv := unitByLabel(t, sys, "pv").(*asset.Volatile).Common()
	assert.Equal(t, *pv.CapacityCost, 60.0)
	assert.Equal(t, *pv.CapacityPotential, 100.0)
	assert.Equal(t, pv.Capacity, 5.0)

	chp := unitByLabel(t, sys, "chp").(*asset.ExtractionTurbine)
	assert.Equal(t, chp.Common().MarginalCost, 1.0)
	assert.Equal(t, *chp.Common().CapacityCost, 120.0)
	assert.Assert(t, chp.Beta() > 0.1999 && chp.Beta() < 0.2001)

	ashp := unitByLabel(t, sys, "ashp").(*asset.Conversion)
	assert.Equal(t, ashp.Efficiency(), 3.0)
	assert.Equal(t, *ashp.Common().CapacityCost, 25.0)

	battery := unitByLabel(t, sys, "battery").(*asset.Storage)
	assert.Equal(t, *battery.Common().CapacityCost, 40.0)
	p := battery.Params()
	assert.Equal(t, *p.StorageCapacityCost, 25.0)
	assert.Equal(t, *p.StorageCapacityPotential, 200.0)
	assert.Equal(t, p.MaxHours, 4.0)
	assert.Equal(t, p.Efficiency, 0.95)
	assert.Assert(t, p.Balanced)

	assert.Equal(t, unitByLabel(t, sys, "bm").(*asset.Commodity).Amount(), 1000.0)
	assert.Equal(t, unitByLabel(t, sys, "demand").(*asset.Load).Amount(), 30.0)
	assert.Equal(t, unitByLabel(t, sys, "excess").(*asset.Excess).Common().MarginalCost, 0.5)
	assert.Equal(t, unitByLabel(t, sys, "excess_heat").(*asset.Excess).Common().MarginalCost, 0.25)
}

func TestTruncatedLoadKeepsItsShare(t *testing.T) {
	in := inputs(t)
	head, err := in.Series.Head(2)
	assert.NilError(t, err)
	in.Full, in.Series = in.Series, head

	sys, err := load(t).Build(in)
	assert.NilError(t, err)
	assert.Equal(t, sys.Horizon.Len(), 2)

	// electricity profile 1,2,1 keeps 3 of 4 parts of the amount 30
	demand := unitByLabel(t, sys, "demand").(*asset.Load)
	assert.Equal(t, demand.Amount(), 22.5)
	d, err := demand.Demand(sys.Horizon)
	assert.NilError(t, err)
	assert.DeepEqual(t, d, []float64{7.5, 15})

	// heat profile 2,1,1 keeps 3 of 4 parts of the amount 20
	assert.Equal(t, unitByLabel(t, sys, "space").(*asset.Load).Amount(), 15.0)
	// commodities are not scaled
	assert.Equal(t, unitByLabel(t, sys, "bm").(*asset.Commodity).Amount(), 1000.0)
}

func TestBuiltSystemAssembles(t *testing.T) {
	sys, err := load(t).Build(inputs(t))
	assert.NilError(t, err)

	m, err := model.Build(sys.Network, sys.Units, sys.Horizon)
	assert.NilError(t, err)
	assert.Equal(t, len(m.BalanceRows("elec")), 3)
	assert.Equal(t, len(m.BalanceRows("fuel")), 3)
	assert.Assert(t, m.Problem().NumVars() > 0)
}

func TestBalancedOverride(t *testing.T) {
	s := load(t)
	off := false
	for i := range s.Units {
		if s.Units[i].Label == "battery" {
			s.Units[i].Balanced = &off
		}
	}
	sys, err := s.Build(inputs(t))
	assert.NilError(t, err)
	assert.Assert(t, !unitByLabel(t, sys, "battery").(*asset.Storage).Params().Balanced)
}

func TestBuildErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*UnitSpec)
		kind   error
		field  string
	}{
		{"unknown type", func(u *UnitSpec) { u.Type = "nuclear" }, errs.ErrInvalidParameter, "type"},
		{"unknown bus", func(u *UnitSpec) { u.Bus = "gas" }, errs.ErrModelBuild, ""},
		{"missing lifetime", func(u *UnitSpec) { u.Costs = "broken" }, errs.ErrInvalidParameter, "lifetime"},
		{"missing series", func(u *UnitSpec) { u.Profile = "wind" }, errs.ErrInvalidParameter, "profile"},
		{"carrier mismatch", func(u *UnitSpec) { u.Carrier = "heat" }, errs.ErrCarrierMismatch, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := load(t)
			c.mutate(&s.Units[0])

			_, err := s.Build(inputs(t))
			assert.Assert(t, errors.Is(err, c.kind), "got %v", err)
			var e *errs.Error
			assert.Assert(t, errors.As(err, &e))
			assert.Equal(t, e.Unit, "pv")
			if c.field != "" {
				assert.Equal(t, e.Field, c.field)
			}
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(strings.NewReader("name: x\nbuses: []\nunits: []\nsolver: cbc\n"))
	assert.ErrorContains(t, err, "solver")

	_, err = Load(strings.NewReader("name: x\nunits:\n  - {label: a, type: excess, bus: b}\n"))
	assert.ErrorContains(t, err, "no buses")
}
