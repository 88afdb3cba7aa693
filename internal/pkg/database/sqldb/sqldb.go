// Package sqldb stores run summaries, installed capacities and bus prices in
// a MySQL or PostgreSQL database.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/ohowland/cgc_planner/internal/pkg/model"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/ohowland/cgc_planner/internal/pkg/results"
)

// Supported drivers.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
)

// Config selects the driver and data source.
type Config struct {
	Driver string
	DSN    string
}

type dialect struct {
	driver string
}

func (d dialect) placeholder(i int) string {
	if d.driver == Postgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func (d dialect) insert(table string, cols ...string) string {
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(ph, ", "))
}

func (d dialect) schema() []string {
	text := "TEXT"
	key := "VARCHAR(64)"
	if d.driver == MySQL {
		text = "VARCHAR(1024)"
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS runs (
	run_id %[1]s PRIMARY KEY,
	model_id %[1]s NOT NULL,
	status %[1]s NOT NULL,
	objective DOUBLE PRECISION NOT NULL
)`, key),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS capacities (
	run_id %[1]s NOT NULL,
	label %[1]s NOT NULL,
	tech %[1]s NOT NULL,
	carrier %[1]s NOT NULL,
	capacity DOUBLE PRECISION NOT NULL,
	invest DOUBLE PRECISION NOT NULL,
	storage_capacity DOUBLE PRECISION NOT NULL,
	storage_invest DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, label)
)`, key),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS prices (
	run_id %[1]s NOT NULL,
	bus %[1]s NOT NULL,
	t INTEGER NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, bus, t)
)`, key),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS events (
	run_id %[1]s NOT NULL,
	stage %[1]s NOT NULL,
	message %[2]s,
	at TIMESTAMP NOT NULL
)`, key, text),
	}
}

// normalizeDSN validates dsn for the driver. MySQL sources gain parseTime;
// postgres URLs are converted to a key/value connection string.
func normalizeDSN(driver, dsn string) (string, error) {
	switch driver {
	case MySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", err
		}
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	case Postgres:
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			return pq.ParseURL(dsn)
		}
		return dsn, nil
	}
	return "", fmt.Errorf("sqldb: unsupported driver %q", driver)
}

// Writer is a datastreams.Writer backed by database/sql.
type Writer struct {
	db      *sql.DB
	dialect dialect
}

// New opens the database and creates the tables when missing.
func New(ctx context.Context, cfg Config) (*Writer, error) {
	dsn, err := normalizeDSN(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	w := &Writer{db: db, dialect: dialect{driver: cfg.Driver}}
	for _, stmt := range w.dialect.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqldb: create schema: %w", err)
		}
	}
	return w, nil
}

// Name identifies the sink in logs.
func (w *Writer) Name() string { return "sqldb" }

// Write stores results in one transaction, and status events as single rows.
func (w *Writer) Write(ctx context.Context, m msg.Msg) error {
	switch p := m.Payload().(type) {
	case *results.Results:
		return w.writeResults(ctx, p)
	case results.Event:
		_, err := w.db.ExecContext(ctx,
			w.dialect.insert("events", "run_id", "stage", "message", "at"),
			p.RunID.String(), p.Stage, p.Message, p.Time.UTC())
		return err
	case model.Progress:
		return nil
	}
	return fmt.Errorf("sqldb: unsupported payload %T", m.Payload())
}

func (w *Writer) writeResults(ctx context.Context, r *results.Results) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	run := r.RunID.String()
	if _, err := tx.ExecContext(ctx,
		w.dialect.insert("runs", "run_id", "model_id", "status", "objective"),
		run, r.ModelID.String(), r.Status, r.Objective); err != nil {
		return err
	}

	capStmt, err := tx.PrepareContext(ctx, w.dialect.insert("capacities",
		"run_id", "label", "tech", "carrier", "capacity", "invest", "storage_capacity", "storage_invest"))
	if err != nil {
		return err
	}
	defer capStmt.Close()
	for _, u := range r.Units {
		if _, err := capStmt.ExecContext(ctx, run, u.Label, u.Tech, u.Carrier,
			u.Capacity, u.Invest, u.StorageCapacity, u.StorageInvest); err != nil {
			return fmt.Errorf("sqldb: unit %q: %w", u.Label, err)
		}
	}

	priceStmt, err := tx.PrepareContext(ctx, w.dialect.insert("prices", "run_id", "bus", "t", "price"))
	if err != nil {
		return err
	}
	defer priceStmt.Close()
	for bus, prices := range r.Prices {
		for t, p := range prices {
			if _, err := priceStmt.ExecContext(ctx, run, bus, t, p); err != nil {
				return fmt.Errorf("sqldb: bus %q t=%d: %w", bus, t, err)
			}
		}
	}
	return tx.Commit()
}

// Close closes the connection pool.
func (w *Writer) Close(context.Context) error {
	return w.db.Close()
}
