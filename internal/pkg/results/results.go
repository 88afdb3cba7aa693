// Package results reads a solution back through a model's declarations into
// per-unit series, installed capacities and bus prices.
package results

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/asset"
	"github.com/ohowland/cgc_planner/internal/pkg/model"
	"github.com/ohowland/cgc_planner/internal/pkg/solver"
)

// Unit is the solved state of one technology unit.
type Unit struct {
	Label           string               `json:"label" bson:"label"`
	Tech            string               `json:"tech" bson:"tech"`
	Carrier         string               `json:"carrier" bson:"carrier"`
	Capacity        float64              `json:"capacity" bson:"capacity"`
	Invest          float64              `json:"invest" bson:"invest"`
	StorageCapacity float64              `json:"storage_capacity" bson:"storage_capacity"`
	StorageInvest   float64              `json:"storage_invest" bson:"storage_invest"`
	Series          map[string][]float64 `json:"series" bson:"series"`
}

// Total sums one series over the horizon.
func (u Unit) Total(series string) float64 {
	var sum float64
	for _, v := range u.Series[series] {
		sum += v
	}
	return sum
}

// SeriesNames returns the unit's series names in sorted order.
func (u Unit) SeriesNames() []string {
	names := make([]string, 0, len(u.Series))
	for k := range u.Series {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Results is everything a run reports.
type Results struct {
	RunID     uuid.UUID            `json:"run_id"`
	ModelID   uuid.UUID            `json:"model_id"`
	Status    string               `json:"status"`
	Objective float64              `json:"objective"`
	Index     []time.Time          `json:"index"`
	Units     []Unit               `json:"units"`
	Prices    map[string][]float64 `json:"prices,omitempty"`
	Warnings  []string             `json:"warnings,omitempty"`
}

// Unit looks up a unit by label.
func (r *Results) Unit(label string) (Unit, bool) {
	for _, u := range r.Units {
		if u.Label == label {
			return u, true
		}
	}
	return Unit{}, false
}

// Extract maps sol onto m. Prices are filled only when sol carries duals.
func Extract(m *model.Model, sol *solver.Solution) (*Results, error) {
	p := m.Problem()
	if len(sol.Primal) != p.NumVars() {
		return nil, fmt.Errorf("solution has %d values, model has %d variables", len(sol.Primal), p.NumVars())
	}
	runID, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}

	r := &Results{
		RunID:     runID,
		ModelID:   m.PID(),
		Status:    sol.Status,
		Objective: sol.Objective,
		Index:     m.Horizon().Index(),
		Warnings:  m.Warnings(),
	}
	for _, d := range m.Declarations() {
		r.Units = append(r.Units, extractUnit(d, sol.Primal))
	}

	if sol.Duals != nil {
		if len(sol.Duals) != p.NumRows() {
			return nil, fmt.Errorf("solution has %d duals, model has %d rows", len(sol.Duals), p.NumRows())
		}
		r.Prices = make(map[string][]float64)
		for _, b := range m.Buses() {
			rows := m.BalanceRows(b.Name())
			prices := make([]float64, len(rows))
			for t, i := range rows {
				prices[t] = sol.Duals[i]
			}
			r.Prices[b.Name()] = prices
		}
	}
	return r, nil
}

func extractUnit(d *asset.Declaration, x []float64) Unit {
	u := Unit{
		Label:   d.Unit.Label(),
		Tech:    d.Unit.Tech(),
		Carrier: d.Unit.Carrier(),
		Series:  make(map[string][]float64, len(d.Series)),
	}
	for name, vars := range d.Series {
		vals := make([]float64, len(vars))
		for t, v := range vars {
			vals[t] = x[v]
		}
		u.Series[name] = vals
	}
	for _, f := range d.Flows {
		if f.Fixed != nil {
			u.Series[asset.Demand] = append([]float64(nil), f.Fixed...)
		}
	}

	if c, ok := d.Fixed[asset.Capacity]; ok {
		u.Capacity = c
	}
	if v, ok := d.Scalars[asset.Invest]; ok {
		u.Invest = x[v]
		u.Capacity = d.Fixed[asset.ExistingCapacity] + u.Invest
	}
	if c, ok := d.Fixed[asset.StorageCapacity]; ok {
		u.StorageCapacity = c
	}
	if v, ok := d.Scalars[asset.StorageInvest]; ok {
		u.StorageInvest = x[v]
		u.StorageCapacity = d.Fixed[asset.ExistingStorage] + u.StorageInvest
	}
	return u
}

// CheckBalance verifies every bus balance row holds at sol within tol.
func CheckBalance(m *model.Model, sol *solver.Solution, tol float64) error {
	p := m.Problem()
	for _, b := range m.Buses() {
		for t, i := range m.BalanceRows(b.Name()) {
			got, want := p.Activity(i, sol.Primal), p.Row(i).RHS
			if math.Abs(got-want) > tol*math.Max(1, math.Abs(want)) {
				return fmt.Errorf("bus %q unbalanced at t=%d: inflow - outflow = %v, want %v", b.Name(), t, got, want)
			}
		}
	}
	return nil
}

// Run lifecycle stages carried by Event.
const (
	StageStarted = "started"
	StageBuilt   = "built"
	StageSolved  = "solved"
	StageFailed  = "failed"
)

// Event is a run lifecycle notice published on the status topic.
type Event struct {
	RunID   uuid.UUID `json:"run_id"`
	Stage   string    `json:"stage"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}
