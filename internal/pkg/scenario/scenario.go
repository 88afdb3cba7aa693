// Package scenario wires buses and technology units from a YAML scenario
// file and the input tables into a carrier network.
package scenario

import (
	"fmt"
	"io"
	"os"

	"github.com/ohowland/cgc_planner/internal/pkg/asset"
	"github.com/ohowland/cgc_planner/internal/pkg/bus"
	"github.com/ohowland/cgc_planner/internal/pkg/data"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/timeindex"
	"gopkg.in/yaml.v3"
)

// Unit types accepted in a scenario file.
const (
	TypeVolatile   = "volatile"
	TypeCommodity  = "commodity"
	TypeConversion = "conversion"
	TypeExtraction = "extraction"
	TypeReservoir  = "reservoir"
	TypeStorage    = "storage"
	TypeLoad       = "load"
	TypeExcess     = "excess"
)

// Scenario is the parsed scenario file.
type Scenario struct {
	Name  string     `yaml:"name"`
	Buses []BusSpec  `yaml:"buses"`
	Units []UnitSpec `yaml:"units"`
}

// BusSpec declares one bus.
type BusSpec struct {
	Name    string `yaml:"name"`
	Carrier string `yaml:"carrier"`
}

// UnitSpec declares one unit. Costs and Capacity name the row of the costs
// and capacity tables the unit reads; Profile names a timeseries column.
type UnitSpec struct {
	Label          string   `yaml:"label"`
	Type           string   `yaml:"type"`
	Carrier        string   `yaml:"carrier"`
	Tech           string   `yaml:"tech"`
	Bus            string   `yaml:"bus"`
	FromBus        string   `yaml:"from_bus"`
	ToBus          string   `yaml:"to_bus"`
	FuelBus        string   `yaml:"fuel_bus"`
	ElectricityBus string   `yaml:"electricity_bus"`
	HeatBus        string   `yaml:"heat_bus"`
	Costs          string   `yaml:"costs"`
	Capacity       string   `yaml:"capacity"`
	Profile        string   `yaml:"profile"`
	Expandable     bool     `yaml:"expandable"`
	Balanced       *bool    `yaml:"balanced"`
	InitialLevel   *float64 `yaml:"initial_storage_level"`
	MarginalCost   *float64 `yaml:"marginal_cost"`
	Amount         *float64 `yaml:"amount"`
}

// Inputs are the tables a scenario reads from.
type Inputs struct {
	Costs    *data.Table
	Capacity *data.Table
	Series   *data.Timeseries

	// Full is the untruncated timeseries when Series keeps only its head.
	// Load amounts are then cut to the share of their profile that was kept.
	Full *data.Timeseries
}

// System is a wired network ready for model assembly.
type System struct {
	Name    string
	Network *bus.Network
	Units   []asset.Unit
	Horizon timeindex.Horizon
}

// LoadFile reads a scenario file.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Load parses a scenario. Unknown keys are rejected.
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	s := &Scenario{}
	if err := dec.Decode(s); err != nil {
		return nil, err
	}
	if len(s.Buses) == 0 {
		return nil, fmt.Errorf("scenario %q declares no buses", s.Name)
	}
	if len(s.Units) == 0 {
		return nil, fmt.Errorf("scenario %q declares no units", s.Name)
	}
	return s, nil
}

// Build creates the buses, builds one validated unit per spec and attaches
// every unit to the network.
func (s *Scenario) Build(in Inputs) (*System, error) {
	if in.Series == nil {
		return nil, errs.Build("", "", fmt.Errorf("scenario %q needs a timeseries", s.Name))
	}
	net, err := bus.NewNetwork()
	if err != nil {
		return nil, err
	}
	for _, b := range s.Buses {
		c, err := bus.ParseCarrier(b.Carrier)
		if err != nil {
			return nil, errs.Build("", b.Name, err)
		}
		if _, err := net.CreateBus(b.Name, c); err != nil {
			return nil, err
		}
	}

	w := wiring{in: in, net: net}
	sys := &System{Name: s.Name, Network: net, Horizon: in.Series.Horizon()}
	for _, spec := range s.Units {
		u, err := w.unit(spec)
		if err != nil {
			return nil, err
		}
		if err := asset.Attach(net, u); err != nil {
			return nil, err
		}
		sys.Units = append(sys.Units, u)
	}
	return sys, nil
}
