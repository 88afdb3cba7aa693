package datastreams

import (
	"encoding/json"
	"fmt"

	"github.com/ohowland/cgc_planner/internal/pkg/model"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/ohowland/cgc_planner/internal/pkg/results"
)

// Envelope is the JSON form of a message on a broker.
type Envelope struct {
	Sender string      `json:"sender"`
	Topic  string      `json:"topic"`
	Data   interface{} `json:"data"`
}

// Summary is what a Result message carries over the wire: capacities and the
// objective, without the per-timestep series.
type Summary struct {
	RunID      string                        `json:"run_id"`
	Status     string                        `json:"status"`
	Objective  float64                       `json:"objective"`
	Capacities map[string]map[string]float64 `json:"capacities"`
	Warnings   []string                      `json:"warnings,omitempty"`
}

func Summarize(r *results.Results) Summary {
	s := Summary{
		RunID:      r.RunID.String(),
		Status:     r.Status,
		Objective:  r.Objective,
		Capacities: make(map[string]map[string]float64, len(r.Units)),
		Warnings:   r.Warnings,
	}
	for _, u := range r.Units {
		s.Capacities[u.Label] = map[string]float64{
			"capacity":         u.Capacity,
			"invest":           u.Invest,
			"storage_capacity": u.StorageCapacity,
			"storage_invest":   u.StorageInvest,
		}
	}
	return s
}

// Encode marshals m into an Envelope. Results are reduced to a Summary.
func Encode(m msg.Msg) ([]byte, error) {
	var data interface{}
	switch p := m.Payload().(type) {
	case *results.Results:
		data = Summarize(p)
	case results.Event, model.Progress:
		data = p
	default:
		return nil, fmt.Errorf("unsupported payload %T", p)
	}
	return json.Marshal(Envelope{Sender: m.PID().String(), Topic: m.Topic().String(), Data: data})
}
