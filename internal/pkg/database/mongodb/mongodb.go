// Package mongodb stores run results and lifecycle events in MongoDB.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/ohowland/cgc_planner/internal/pkg/model"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/ohowland/cgc_planner/internal/pkg/results"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	Runs   = "runs"
	Units  = "units"
	Events = "events"
)

// Config locates the database.
type Config struct {
	URI      string
	Database string
}

// Writer is a datastreams.Writer backed by a MongoDB database.
type Writer struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects and pings the server.
func New(ctx context.Context, cfg Config) (*Writer, error) {
	if cfg.URI == "" || cfg.Database == "" {
		return nil, fmt.Errorf("mongodb: uri and database are required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return &Writer{client: client, db: client.Database(cfg.Database)}, nil
}

// Name identifies the sink in logs.
func (w *Writer) Name() string { return "mongodb" }

// Write stores results in the runs and units collections and status events
// in the events collection. Progress messages are ignored.
func (w *Writer) Write(ctx context.Context, m msg.Msg) error {
	switch p := m.Payload().(type) {
	case *results.Results:
		if _, err := w.db.Collection(Runs).InsertOne(ctx, runDocument(p)); err != nil {
			return err
		}
		opts := options.Update().SetUpsert(true)
		for _, u := range p.Units {
			_, err := w.db.Collection(Units).UpdateOne(ctx,
				bson.M{"run_id": p.RunID.String(), "label": u.Label},
				bson.M{"$set": unitDocument(p, u)},
				opts,
			)
			if err != nil {
				return err
			}
		}
	case results.Event:
		_, err := w.db.Collection(Events).InsertOne(ctx, eventDocument(p))
		return err
	case model.Progress:
	default:
		return fmt.Errorf("mongodb: unsupported payload %T", p)
	}
	return nil
}

// Close disconnects the client.
func (w *Writer) Close(ctx context.Context) error {
	return w.client.Disconnect(ctx)
}

type unitDoc struct {
	RunID        string `bson:"run_id"`
	results.Unit `bson:",inline"`
}

// runDocument keeps the run summary without the per-unit series, which live
// in the units collection. Ids are written as strings.
func runDocument(r *results.Results) bson.D {
	capacities := bson.M{}
	for _, u := range r.Units {
		capacities[u.Label] = bson.M{
			"capacity":         u.Capacity,
			"storage_capacity": u.StorageCapacity,
		}
	}
	return bson.D{
		{Key: "run_id", Value: r.RunID.String()},
		{Key: "model_id", Value: r.ModelID.String()},
		{Key: "status", Value: r.Status},
		{Key: "objective", Value: r.Objective},
		{Key: "index", Value: r.Index},
		{Key: "capacities", Value: capacities},
		{Key: "prices", Value: r.Prices},
		{Key: "warnings", Value: r.Warnings},
		{Key: "written", Value: time.Now().UTC()},
	}
}

func unitDocument(r *results.Results, u results.Unit) unitDoc {
	return unitDoc{RunID: r.RunID.String(), Unit: u}
}

func eventDocument(e results.Event) bson.D {
	return bson.D{
		{Key: "run_id", Value: e.RunID.String()},
		{Key: "stage", Value: e.Stage},
		{Key: "message", Value: e.Message},
		{Key: "time", Value: e.Time},
	}
}
