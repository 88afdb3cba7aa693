package bus

import (
	"fmt"
	"strings"
)

// Carrier is the energy medium a bus balances.
type Carrier int

const (
	Electricity Carrier = iota + 1
	Heat
	Fuel
)

func (c Carrier) String() string {
	switch c {
	case Electricity:
		return "electricity"
	case Heat:
		return "heat"
	case Fuel:
		return "fuel"
	}
	return fmt.Sprintf("carrier(%d)", int(c))
}

// ParseCarrier maps a carrier name to a Carrier.
func ParseCarrier(s string) (Carrier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "electricity", "elec":
		return Electricity, nil
	case "heat":
		return Heat, nil
	case "fuel":
		return Fuel, nil
	}
	return 0, fmt.Errorf("unknown carrier %q", s)
}

// tagCarrier maps technology carrier tags to the bus carrier they deliver to
// or draw from.
var tagCarrier = map[string]Carrier{
	"electricity": Electricity,
	"elec":        Electricity,
	"wind":        Electricity,
	"solar":       Electricity,
	"hydro":       Electricity,
	"li-ion":      Electricity,
	"lithium":     Electricity,
	"cavern":      Electricity,
	"redox":       Electricity,
	"hydrogen":    Electricity,
	"battery":     Electricity,
	"heat":        Heat,
	"fuel":        Fuel,
	"biomass":     Fuel,
	"biogas":      Fuel,
	"gas":         Fuel,
	"oil":         Fuel,
	"coal":        Fuel,
	"lignite":     Fuel,
}

// ResolveTag returns the carrier a technology tag belongs to.
func ResolveTag(tag string) (Carrier, bool) {
	c, ok := tagCarrier[strings.ToLower(strings.TrimSpace(tag))]
	return c, ok
}

// Role is the part a unit port plays on a bus.
type Role int

const (
	// Output delivers the unit's own carrier into the bus.
	Output Role = iota + 1
	// Input draws the unit's own carrier from the bus.
	Input
	// Exchange charges from and discharges into the bus (storages).
	Exchange
	// FuelInput draws fuel regardless of the unit's tag.
	FuelInput
	// ElectricityOutput delivers electricity regardless of the unit's tag.
	ElectricityOutput
	// HeatOutput delivers heat regardless of the unit's tag.
	HeatOutput
	// AnyOutput delivers a converted carrier of any type.
	AnyOutput
	// Sink absorbs surplus of whatever carrier the bus holds.
	Sink
)

func (r Role) String() string {
	switch r {
	case Output:
		return "output"
	case Input:
		return "input"
	case Exchange:
		return "exchange"
	case FuelInput:
		return "fuel_input"
	case ElectricityOutput:
		return "electricity_output"
	case HeatOutput:
		return "heat_output"
	case AnyOutput:
		return "any_output"
	case Sink:
		return "sink"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Inbound reports whether the role moves energy from the bus into the unit.
// Exchange ports move energy both ways and report false.
func (r Role) Inbound() bool {
	return r == Input || r == FuelInput || r == Sink
}

// required returns the carrier a port must attach to, or false if the role
// places no restriction.
func (r Role) required(tag string) (Carrier, bool, error) {
	switch r {
	case FuelInput:
		return Fuel, true, nil
	case ElectricityOutput:
		return Electricity, true, nil
	case HeatOutput:
		return Heat, true, nil
	case AnyOutput, Sink:
		return 0, false, nil
	}
	c, ok := ResolveTag(tag)
	if !ok {
		return 0, false, fmt.Errorf("carrier tag %q does not resolve to a bus carrier", tag)
	}
	return c, true, nil
}
