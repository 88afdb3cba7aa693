package asset

import (
	"math"

	"github.com/ohowland/cgc_planner/internal/pkg/bus"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
	"github.com/ohowland/cgc_planner/internal/pkg/lp"
	"github.com/ohowland/cgc_planner/internal/pkg/timeindex"
)

// LoadConfig configures a fixed demand. The profile is normalized so that
// demand over the horizon sums to Amount.
type LoadConfig struct {
	Label   string
	Carrier string
	Tech    string
	Bus     *bus.Bus
	Amount  float64
	Profile []float64
}

// Load draws amount × profile[t] / Σprofile from its bus. It declares no variables.
type Load struct {
	base
	bus     *bus.Bus
	amount  float64
	profile []float64
}

// NewLoad validates cfg and returns the unit.
func NewLoad(cfg LoadConfig) (*Load, error) {
	b, err := newBase(Common{Label: cfg.Label, Carrier: cfg.Carrier, Tech: cfg.Tech})
	if err != nil {
		return nil, err
	}
	if cfg.Bus == nil {
		return nil, errs.Invalid(cfg.Label, "bus", "bus is not set")
	}
	if !finite(cfg.Amount) || cfg.Amount < 0 {
		return nil, errs.Invalid(cfg.Label, "amount", "must be finite and >= 0, got %v", cfg.Amount)
	}
	profile := make([]float64, len(cfg.Profile))
	copy(profile, cfg.Profile)
	return &Load{base: b, bus: cfg.Bus, amount: cfg.Amount, profile: profile}, nil
}

// Ports returns the single input port.
func (u *Load) Ports() []bus.Port {
	return []bus.Port{{Bus: u.bus, Role: bus.Input}}
}

// Demand returns the per-timestep demand over h.
func (u *Load) Demand(h timeindex.Horizon) ([]float64, error) {
	if err := checkProfile(u.Label(), u.profile, h, false); err != nil {
		return nil, err
	}
	var sum float64
	for _, p := range u.profile {
		sum += p
	}
	demand := make([]float64, h.Len())
	if u.amount == 0 {
		return demand, nil
	}
	if sum == 0 || math.IsInf(sum, 0) {
		return nil, errs.Invalid(u.Label(), "profile", "sums to %v, cannot distribute amount %v", sum, u.amount)
	}
	for t, p := range u.profile {
		demand[t] = u.amount * p / sum
	}
	return demand, nil
}

// DeclareVariables records the fixed demand on the bus.
func (u *Load) DeclareVariables(b *lp.Builder, h timeindex.Horizon) (*Declaration, error) {
	demand, err := u.Demand(h)
	if err != nil {
		return nil, err
	}
	d := newDeclaration(u)
	d.Fixed["amount"] = u.amount
	d.Flows = []BusFlow{{Bus: u.bus, Into: false, Fixed: demand}}
	return d, nil
}

// DeclareConstraints adds nothing; demand enters the bus balance directly.
func (u *Load) DeclareConstraints(b *lp.Builder, d *Declaration, h timeindex.Horizon) error {
	return nil
}

// ObjectiveTerms is empty for a load.
func (u *Load) ObjectiveTerms(d *Declaration, h timeindex.Horizon) []lp.Term {
	return nil
}

// Amount is the total demand over the horizon.
func (u *Load) Amount() float64 {
	return u.amount
}
