// Package natshandler publishes run events to a NATS server so other
// services can follow a planning run.
package natshandler

import (
	"context"
	"fmt"

	nats "github.com/nats-io/nats.go"
	"github.com/ohowland/cgc_planner/internal/pkg/datastreams"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
)

// DefaultSubject prefixes every published subject.
const DefaultSubject = "planner"

// Config locates the server.
type Config struct {
	URL     string
	Subject string
}

// Writer is a datastreams.Writer that publishes to NATS.
type Writer struct {
	nc      *nats.Conn
	subject string
}

// New connects to the server. An empty URL uses nats.DefaultURL.
func New(cfg Config) (*Writer, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name("cgc_planner"))
	if err != nil {
		return nil, err
	}
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	return &Writer{nc: nc, subject: subject}, nil
}

// Name identifies the sink in logs.
func (w *Writer) Name() string { return "nats" }

// Write publishes m as JSON on <subject>.<topic>.
func (w *Writer) Write(_ context.Context, m msg.Msg) error {
	subject, data, err := encode(w.subject, m)
	if err != nil {
		return err
	}
	return w.nc.Publish(subject, data)
}

// Close flushes pending messages and closes the connection.
func (w *Writer) Close(context.Context) error {
	defer w.nc.Close()
	return w.nc.Flush()
}

func encode(prefix string, m msg.Msg) (string, []byte, error) {
	b, err := datastreams.Encode(m)
	if err != nil {
		return "", nil, fmt.Errorf("natshandler: %w", err)
	}
	return prefix + "." + m.Topic().String(), b, nil
}
