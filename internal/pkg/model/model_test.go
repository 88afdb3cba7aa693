package model

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ohowland/cgc_planner/internal/pkg/asset"
	"github.com/ohowland/cgc_planner/internal/pkg/bus"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/timeindex"
	"gotest.tools/v3/assert"
)

type fixture struct {
	net   *bus.Network
	elec  *bus.Bus
	units []asset.Unit
}

func newFixture(t *testing.T, withExcess bool, profile []float64) fixture {
	t.Helper()
	net, err := bus.NewNetwork()
	assert.NilError(t, err)
	elec, err := net.CreateBus("electricity", bus.Electricity)
	assert.NilError(t, err)

	wind, err := asset.NewVolatile(asset.VolatileConfig{
		Common: asset.Common{
			Label:        "wind",
			Carrier:      "wind",
			Expandable:   true,
			CapacityCost: asset.Float(10),
		},
		Bus:     elec,
		Profile: profile,
	})
	assert.NilError(t, err)
	load, err := asset.NewLoad(asset.LoadConfig{
		Label:   "demand",
		Carrier: "electricity",
		Bus:     elec,
		Amount:  40,
		Profile: []float64{1, 1},
	})
	assert.NilError(t, err)
	units := []asset.Unit{wind, load}
	if withExcess {
		excess, err := asset.NewExcess(asset.ExcessConfig{Label: "electricity-excess", Bus: elec})
		assert.NilError(t, err)
		units = append(units, excess)
	}
	for _, u := range units {
		assert.NilError(t, asset.Attach(net, u))
	}
	return fixture{net, elec, units}
}

func TestBuild(t *testing.T) {
	f := newFixture(t, true, []float64{0.5, 1})
	m, err := Build(f.net, f.units, timeindex.Steps(2))
	assert.NilError(t, err)

	p := m.Problem()
	// invest, wind flow x2, excess flow x2
	assert.Equal(t, p.NumVars(), 5)
	// volatile limit x2, balance x2
	assert.Equal(t, p.NumRows(), 4)

	rows := m.BalanceRows("electricity")
	assert.Equal(t, len(rows), 2)
	r := p.Row(rows[1])
	assert.Equal(t, r.Name, "balance_electricity_1")
	assert.Equal(t, r.RHS, 20.0)
	assert.Equal(t, len(r.Terms), 2)

	d, ok := m.Declaration("wind")
	assert.Assert(t, ok)
	assert.Equal(t, p.Cost(d.Scalars[asset.Invest]), 10.0)
	assert.Assert(t, f.net.Frozen())
}

func TestBuildMissingSlack(t *testing.T) {
	f := newFixture(t, false, []float64{0.5, 1})
	a, err := NewAssembler(f.net, f.units, timeindex.Steps(2))
	assert.NilError(t, err)

	m, err := a.Build()
	assert.Assert(t, m == nil)
	assert.Assert(t, errors.Is(err, errs.ErrMissingSlack))
	var e *errs.Error
	assert.Assert(t, errors.As(err, &e))
	assert.Equal(t, e.Bus, "electricity")
	assert.Equal(t, a.State(), "Unregistered")
	assert.Assert(t, !f.net.Frozen())
}

func TestBuildTwiceIsAlreadyBuilt(t *testing.T) {
	f := newFixture(t, true, []float64{0.5, 1})
	a, err := NewAssembler(f.net, f.units, timeindex.Steps(2))
	assert.NilError(t, err)

	_, err = a.Build()
	assert.NilError(t, err)
	assert.Equal(t, a.State(), "Built")

	m, err := a.Build()
	assert.Assert(t, m == nil)
	assert.Assert(t, errors.Is(err, errs.ErrAlreadyBuilt))
	assert.Equal(t, a.State(), "Built")
}

func TestBuildFailureResets(t *testing.T) {
	f := newFixture(t, true, []float64{0.5})
	a, err := NewAssembler(f.net, f.units, timeindex.Steps(2))
	assert.NilError(t, err)

	for i := 0; i < 2; i++ {
		m, err := a.Build()
		assert.Assert(t, m == nil)
		assert.Assert(t, errors.Is(err, errs.ErrInvalidParameter), "got %v", err)
		assert.Equal(t, a.State(), "Unregistered")
	}
}

func TestBuildRejectsUnattachedUnit(t *testing.T) {
	f := newFixture(t, true, []float64{0.5, 1})
	stray, err := asset.NewCommodity(asset.CommodityConfig{
		Common: asset.Common{Label: "gas", Carrier: "gas"},
		Bus:    f.elec,
		Amount: 1,
	})
	assert.NilError(t, err)

	_, err = Build(f.net, append(f.units, stray), timeindex.Steps(2))
	assert.Assert(t, errors.Is(err, errs.ErrModelBuild))
	assert.ErrorContains(t, err, "not attached")
}

func TestBuildSlackMustBeAmongUnits(t *testing.T) {
	f := newFixture(t, true, []float64{0.5, 1})
	// excess is attached to the network but left out of the unit list
	_, err := Build(f.net, f.units[:2], timeindex.Steps(2))
	assert.Assert(t, errors.Is(err, errs.ErrMissingSlack), "got %v", err)
	var e *errs.Error
	assert.Assert(t, errors.As(err, &e))
	assert.Equal(t, e.Bus, "electricity")
}

func TestBuildRejectsMemberNotAmongUnits(t *testing.T) {
	f := newFixture(t, true, []float64{0.5, 1})
	units := []asset.Unit{f.units[0], f.units[2]}
	_, err := Build(f.net, units, timeindex.Steps(2))
	assert.Assert(t, errors.Is(err, errs.ErrModelBuild), "got %v", err)
	var e *errs.Error
	assert.Assert(t, errors.As(err, &e))
	assert.Equal(t, e.Unit, "demand")
	assert.Equal(t, e.Bus, "electricity")
}

func TestBuildRejectsDuplicateLabels(t *testing.T) {
	f := newFixture(t, true, []float64{0.5, 1})
	_, err := Build(f.net, append(f.units, f.units[0]), timeindex.Steps(2))
	assert.Assert(t, errors.Is(err, errs.ErrModelBuild))
	assert.ErrorContains(t, err, "duplicate unit label")
}

func TestBuildCollectsWarnings(t *testing.T) {
	net, err := bus.NewNetwork()
	assert.NilError(t, err)
	elec, err := net.CreateBus("electricity", bus.Electricity)
	assert.NilError(t, err)
	pv, err := asset.NewVolatile(asset.VolatileConfig{
		Common:  asset.Common{Label: "pv", Carrier: "solar", Capacity: 5, CapacityPotential: asset.Float(3)},
		Bus:     elec,
		Profile: []float64{1},
	})
	assert.NilError(t, err)
	excess, err := asset.NewExcess(asset.ExcessConfig{Label: "excess", Bus: elec})
	assert.NilError(t, err)
	assert.NilError(t, asset.Attach(net, pv))
	assert.NilError(t, asset.Attach(net, excess))

	m, err := Build(net, []asset.Unit{pv, excess}, timeindex.Steps(1))
	assert.NilError(t, err)
	assert.Equal(t, len(m.Warnings()), 1)
	assert.Assert(t, strings.Contains(m.Warnings()[0], "pv is not expandable"))
}

func TestBuildReportsProgress(t *testing.T) {
	f := newFixture(t, true, []float64{0.5, 1})
	var seen []Progress
	_, err := Build(f.net, f.units, timeindex.Steps(2), WithObserver(func(p Progress) {
		seen = append(seen, p)
	}))
	assert.NilError(t, err)
	assert.Equal(t, len(seen), 9)
	assert.Equal(t, seen[0].Stage, "variables")
	assert.Equal(t, seen[8], Progress{Stage: "objective", Done: 9, Total: 9})
}

func TestBuildIsFreshPerCall(t *testing.T) {
	f := newFixture(t, true, []float64{0.5, 1})
	m1, err := Build(f.net, f.units, timeindex.Steps(2))
	assert.NilError(t, err)
	m2, err := Build(f.net, f.units, timeindex.Steps(2))
	assert.NilError(t, err)

	assert.Assert(t, m1.PID() != m2.PID())
	assert.Equal(t, m1.Problem().NumVars(), m2.Problem().NumVars())
	assert.Equal(t, m1.Problem().NumRows(), m2.Problem().NumRows())
}

func TestWriteLP(t *testing.T) {
	f := newFixture(t, true, []float64{0.5, 1})
	m, err := Build(f.net, f.units, timeindex.Steps(2))
	assert.NilError(t, err)

	var buf bytes.Buffer
	assert.NilError(t, m.WriteLP(&buf))
	out := buf.String()
	assert.Assert(t, strings.Contains(out, "balance_electricity_0:"))
	assert.Assert(t, strings.Contains(out, "+10 invest_wind"))
	assert.Assert(t, strings.HasSuffix(out, "end\n"))
}
