// Package mqtthandler publishes run events to an MQTT broker.
package mqtthandler

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/datastreams"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
)

const (
	DefaultTopic   = "planner"
	ConnectTimeout = 10 * time.Second
	// quiesce is how long Disconnect waits for in-flight work, in ms.
	quiesce = 250
)

type Config struct {
	Broker string // e.g. tcp://localhost:1883
	Topic  string
	QoS    byte
}

// Writer is a datastreams.Writer that publishes to MQTT.
type Writer struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// New connects to the broker.
func New(cfg Config) (*Writer, error) {
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtthandler: qos must be 0, 1 or 2, got %d", cfg.QoS)
	}
	id, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("cgc_planner-" + id.String()[:8]).
		SetConnectTimeout(ConnectTimeout)
	client := mqtt.NewClient(opts)

	tok := client.Connect()
	if !tok.WaitTimeout(ConnectTimeout) {
		return nil, fmt.Errorf("mqtthandler: connect to %s timed out", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtthandler: %w", err)
	}
	w := &Writer{client: client, topic: cfg.Topic, qos: cfg.QoS}
	if w.topic == "" {
		w.topic = DefaultTopic
	}
	return w, nil
}

func (w *Writer) Name() string { return "mqtt" }

// Write publishes m as JSON on <topic>/<message topic>.
func (w *Writer) Write(ctx context.Context, m msg.Msg) error {
	topic, data, err := encode(w.topic, m)
	if err != nil {
		return err
	}
	tok := w.client.Publish(topic, w.qos, false, data)
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) Close(context.Context) error {
	w.client.Disconnect(quiesce)
	return nil
}

func encode(prefix string, m msg.Msg) (string, []byte, error) {
	b, err := datastreams.Encode(m)
	if err != nil {
		return "", nil, fmt.Errorf("mqtthandler: %w", err)
	}
	return prefix + "/" + m.Topic().String(), b, nil
}
