package runner

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/ohowland/cgc_planner/internal/pkg/config"
	"github.com/ohowland/cgc_planner/internal/pkg/database/mongodb"
	"github.com/ohowland/cgc_planner/internal/pkg/database/sqldb"
	"github.com/ohowland/cgc_planner/internal/pkg/datastreams"
	"github.com/ohowland/cgc_planner/internal/pkg/datastreams/csvdir"
	"github.com/ohowland/cgc_planner/internal/pkg/datastreams/mqtthandler"
	"github.com/ohowland/cgc_planner/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/ohowland/cgc_planner/internal/pkg/web"
)

// Sinks are the running result handlers of a process.
type Sinks []*datastreams.Handler

// Attach starts a handler for w on the given topics.
func (s *Sinks) Attach(w datastreams.Writer, pub msg.Publisher, log logr.Logger, topics ...msg.Topic) error {
	h, err := datastreams.New(w, pub, log, topics...)
	if err != nil {
		return err
	}
	go h.Process()
	*s = append(*s, h)
	return nil
}

// Stop drains and stops every handler.
func (s Sinks) Stop() {
	for _, h := range s {
		h.Stop()
	}
}

// OpenSinks connects every sink the configuration enables and starts its
// handler. On error the sinks already started are stopped.
func OpenSinks(ctx context.Context, cfg config.Config, pub msg.Publisher, log logr.Logger) (Sinks, error) {
	var sinks Sinks
	fail := func(err error) (Sinks, error) {
		sinks.Stop()
		return nil, err
	}

	if cfg.Results.Dir != "" {
		w, err := csvdir.New(cfg.Results.Dir)
		if err != nil {
			return fail(err)
		}
		if err := sinks.Attach(w, pub, log, msg.Result); err != nil {
			return fail(err)
		}
	}
	if cfg.Sinks.MongoDB.URI != "" {
		w, err := mongodb.New(ctx, mongodb.Config{URI: cfg.Sinks.MongoDB.URI, Database: cfg.Sinks.MongoDB.Database})
		if err != nil {
			return fail(err)
		}
		if err := sinks.Attach(w, pub, log, msg.Status, msg.Result); err != nil {
			w.Close(ctx)
			return fail(err)
		}
	}
	if cfg.Sinks.SQL.Driver != "" {
		w, err := sqldb.New(ctx, sqldb.Config{Driver: cfg.Sinks.SQL.Driver, DSN: cfg.Sinks.SQL.DSN})
		if err != nil {
			return fail(err)
		}
		if err := sinks.Attach(w, pub, log, msg.Status, msg.Result); err != nil {
			w.Close(ctx)
			return fail(err)
		}
	}
	if cfg.Sinks.NATS.URL != "" {
		w, err := natshandler.New(natshandler.Config{URL: cfg.Sinks.NATS.URL, Subject: cfg.Sinks.NATS.Subject})
		if err != nil {
			return fail(err)
		}
		if err := sinks.Attach(w, pub, log, msg.Progress, msg.Status, msg.Result); err != nil {
			w.Close(ctx)
			return fail(err)
		}
	}
	if cfg.Sinks.MQTT.Broker != "" {
		w, err := mqtthandler.New(mqtthandler.Config{
			Broker: cfg.Sinks.MQTT.Broker,
			Topic:  cfg.Sinks.MQTT.Topic,
			QoS:    byte(cfg.Sinks.MQTT.QoS),
		})
		if err != nil {
			return fail(err)
		}
		if err := sinks.Attach(w, pub, log, msg.Progress, msg.Status, msg.Result); err != nil {
			w.Close(ctx)
			return fail(err)
		}
	}
	if cfg.Sinks.Webhook.URL != "" {
		w, err := web.New(web.Config{URL: cfg.Sinks.Webhook.URL, Timeout: cfg.Sinks.Webhook.Timeout})
		if err != nil {
			return fail(err)
		}
		if err := sinks.Attach(w, pub, log, msg.Status, msg.Result); err != nil {
			return fail(err)
		}
	}
	return sinks, nil
}
