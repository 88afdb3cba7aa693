// Package timeindex describes the hourly horizon a model is built over.
package timeindex

import (
	"errors"
	"fmt"
	"time"
)

// Hourly is the only step length the input tables may use.
const Hourly = time.Hour

// Horizon is a gap-free, strictly increasing sequence of timesteps.
type Horizon struct {
	start time.Time
	step  time.Duration
	len   int
}

// New returns a horizon of n steps of length step from start.
func New(start time.Time, step time.Duration, n int) (Horizon, error) {
	if n <= 0 {
		return Horizon{}, fmt.Errorf("horizon needs at least one timestep, got %d", n)
	}
	if step <= 0 {
		return Horizon{}, fmt.Errorf("horizon step must be positive, got %v", step)
	}
	return Horizon{start: start, step: step, len: n}, nil
}

// Steps returns a horizon of n hourly steps starting at the zero time. It is
// meant for models whose timestamps do not matter.
func Steps(n int) Horizon {
	return Horizon{step: Hourly, len: n}
}

// FromIndex validates a timestamp index: strictly monotonic, hourly, no gaps.
func FromIndex(index []time.Time) (Horizon, error) {
	if len(index) == 0 {
		return Horizon{}, errors.New("timeseries index is empty")
	}
	for i := 1; i < len(index); i++ {
		d := index[i].Sub(index[i-1])
		if d <= 0 {
			return Horizon{}, fmt.Errorf("timeseries index not strictly increasing at row %d (%v after %v)",
				i, index[i], index[i-1])
		}
		if d != Hourly {
			return Horizon{}, fmt.Errorf("timeseries index has a %v step at row %d, want %v",
				d, i, Hourly)
		}
	}
	return New(index[0], Hourly, len(index))
}

// Len is the number of timesteps.
func (h Horizon) Len() int { return h.len }

// Start is the timestamp of the first step.
func (h Horizon) Start() time.Time { return h.start }

// Step is the step length.
func (h Horizon) Step() time.Duration { return h.step }

// At returns the timestamp of step t.
func (h Horizon) At(t int) time.Time {
	return h.start.Add(time.Duration(t) * h.step)
}

// Index returns every timestamp of the horizon.
func (h Horizon) Index() []time.Time {
	out := make([]time.Time, h.len)
	for t := range out {
		out[t] = h.At(t)
	}
	return out
}
