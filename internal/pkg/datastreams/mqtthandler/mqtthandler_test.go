package mqtthandler

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/datastreams"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/ohowland/cgc_planner/internal/pkg/results"
	"gotest.tools/v3/assert"
)

func TestEncode(t *testing.T) {
	r := &results.Results{RunID: uuid.New(), Status: "optimal", Objective: 12,
		Units: []results.Unit{{Label: "tes", StorageCapacity: 40}}}
	topic, data, err := encode("sn", msg.New(uuid.New(), msg.Result, r))
	assert.NilError(t, err)
	assert.Equal(t, topic, "sn/result")

	var env struct {
		Data datastreams.Summary `json:"data"`
	}
	assert.NilError(t, json.Unmarshal(data, &env))
	assert.Equal(t, env.Data.Capacities["tes"]["storage_capacity"], 40.0)
}

func TestEncodeRejectsUnknownPayload(t *testing.T) {
	_, _, err := encode("sn", msg.New(uuid.New(), msg.Status, "text"))
	assert.ErrorContains(t, err, "mqtthandler: unsupported payload string")
}

func TestNewRejectsQoS(t *testing.T) {
	_, err := New(Config{Broker: "tcp://localhost:1883", QoS: 3})
	assert.ErrorContains(t, err, "qos must be")
}

// TestPublishLive needs a broker; set PLANNER_TEST_MQTT_BROKER to run it.
func TestPublishLive(t *testing.T) {
	broker := os.Getenv("PLANNER_TEST_MQTT_BROKER")
	if broker == "" {
		t.Skip("PLANNER_TEST_MQTT_BROKER not set")
	}
	w, err := New(Config{Broker: broker, QoS: 1})
	assert.NilError(t, err)
	defer w.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := results.Event{RunID: uuid.New(), Stage: results.StageSolved, Time: time.Now()}
	assert.NilError(t, w.Write(ctx, msg.New(e.RunID, msg.Status, e)))
}
