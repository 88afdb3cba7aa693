package natshandler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
	"github.com/ohowland/cgc_planner/internal/pkg/datastreams"
	"github.com/ohowland/cgc_planner/internal/pkg/model"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/ohowland/cgc_planner/internal/pkg/results"
	"gotest.tools/v3/assert"
)

func TestEncodeResult(t *testing.T) {
	r := &results.Results{
		RunID:     uuid.New(),
		Status:    "optimal",
		Objective: 920,
		Units: []results.Unit{{Label: "pv", Capacity: 80, Invest: 60,
			Series: map[string][]float64{"flow": {1, 2, 3}}}},
	}
	subject, data, err := encode("planner", msg.New(r.RunID, msg.Result, r))
	assert.NilError(t, err)
	assert.Equal(t, subject, "planner.result")

	var got struct {
		Topic string              `json:"topic"`
		Data  datastreams.Summary `json:"data"`
	}
	assert.NilError(t, json.Unmarshal(data, &got))
	assert.Equal(t, got.Topic, "result")
	assert.Equal(t, got.Data.Objective, 920.0)
	assert.Equal(t, got.Data.Capacities["pv"]["invest"], 60.0)
}

func TestEncodeProgress(t *testing.T) {
	subject, data, err := encode("sn", msg.New(uuid.New(), msg.Progress, model.Progress{Stage: "constraints", Done: 4, Total: 9}))
	assert.NilError(t, err)
	assert.Equal(t, subject, "sn.progress")
	assert.Assert(t, json.Valid(data))
}

func TestEncodeRejectsUnknownPayload(t *testing.T) {
	_, _, err := encode("planner", msg.New(uuid.New(), msg.Status, 42))
	assert.ErrorContains(t, err, "unsupported payload int")
}

// TestPublishLive needs a server on nats.DefaultURL.
func TestPublishLive(t *testing.T) {
	nc, err := nats.Connect(nats.DefaultURL)
	if err != nil {
		t.Skip("no NATS server:", err)
	}
	defer nc.Close()

	sub, err := nc.SubscribeSync("planner.status")
	assert.NilError(t, err)

	w, err := New(Config{})
	assert.NilError(t, err)
	e := results.Event{RunID: uuid.New(), Stage: results.StageStarted, Time: time.Now()}
	assert.NilError(t, w.Write(context.Background(), msg.New(e.RunID, msg.Status, e)))
	assert.NilError(t, w.Close(context.Background()))

	m, err := sub.NextMsg(2 * time.Second)
	assert.NilError(t, err)
	assert.Assert(t, json.Valid(m.Data))
}
