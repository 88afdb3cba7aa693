// Package webservice serves finished runs over HTTP as JSON, together with
// the Prometheus metrics endpoint.
package webservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/ohowland/cgc_planner/internal/pkg/metrics"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/ohowland/cgc_planner/internal/pkg/results"
)

// Store keeps every run published during the process lifetime. It is a
// datastreams.Writer so it can hang off the run publisher like any sink.
type Store struct {
	mux    sync.RWMutex
	runs   map[uuid.UUID]*results.Results
	events map[uuid.UUID][]results.Event
	order  []uuid.UUID
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		runs:   make(map[uuid.UUID]*results.Results),
		events: make(map[uuid.UUID][]results.Event),
	}
}

// Name identifies the sink in logs.
func (s *Store) Name() string { return "webservice" }

// Write keeps results and status events.
func (s *Store) Write(_ context.Context, m msg.Msg) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	switch p := m.Payload().(type) {
	case *results.Results:
		if _, ok := s.runs[p.RunID]; !ok {
			s.order = append(s.order, p.RunID)
		}
		s.runs[p.RunID] = p
	case results.Event:
		s.events[p.RunID] = append(s.events[p.RunID], p)
	}
	return nil
}

// Close is a no-op; the store outlives its handler.
func (s *Store) Close(context.Context) error { return nil }

// Run returns the results of one run. "latest" names the last one stored.
func (s *Store) Run(id string) (*results.Results, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	if id == "latest" {
		if len(s.order) == 0 {
			return nil, false
		}
		return s.runs[s.order[len(s.order)-1]], true
	}
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, false
	}
	r, ok := s.runs[pid]
	return r, ok
}

// Summary is the list entry of a run.
type Summary struct {
	RunID     uuid.UUID `json:"run_id"`
	Status    string    `json:"status"`
	Objective float64   `json:"objective"`
	Units     int       `json:"units"`
}

// Summaries lists runs in arrival order.
func (s *Store) Summaries() []Summary {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		r := s.runs[id]
		out = append(out, Summary{RunID: id, Status: r.Status, Objective: r.Objective, Units: len(r.Units)})
	}
	return out
}

// Events returns the status events recorded for a run.
func (s *Store) Events(id uuid.UUID) []results.Event {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return append([]results.Event(nil), s.events[id]...)
}

// App is the HTTP front of a Store.
type App struct {
	Store *Store
	Log   logr.Logger
}

// Router returns the route table.
func (app *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", app.BaseHandler)
	r.HandleFunc("/runs", app.RunsHandler).Methods("GET")
	r.HandleFunc("/runs/{id}", app.RunHandler).Methods("GET")
	r.HandleFunc("/runs/{id}/units/{label}", app.UnitHandler).Methods("GET")
	r.HandleFunc("/runs/{id}/prices/{bus}", app.PriceHandler).Methods("GET")
	r.HandleFunc("/runs/{id}/events", app.EventsHandler).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	return r
}

// BaseHandler answers liveness probes.
func (app *App) BaseHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
}

// RunsHandler lists stored runs.
func (app *App) RunsHandler(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, http.StatusOK, app.Store.Summaries())
}

// RunHandler returns the full results of a run.
func (app *App) RunHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := app.run(w, r)
	if !ok {
		return
	}
	app.writeJSON(w, http.StatusOK, run)
}

// UnitHandler returns one unit of a run.
func (app *App) UnitHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := app.run(w, r)
	if !ok {
		return
	}
	label := mux.Vars(r)["label"]
	u, ok := run.Unit(label)
	if !ok {
		app.writeError(w, http.StatusNotFound, "no unit "+label)
		return
	}
	app.writeJSON(w, http.StatusOK, u)
}

// PriceHandler returns the shadow prices of one bus.
func (app *App) PriceHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := app.run(w, r)
	if !ok {
		return
	}
	bus := mux.Vars(r)["bus"]
	prices, ok := run.Prices[bus]
	if !ok {
		app.writeError(w, http.StatusNotFound, "no prices for bus "+bus)
		return
	}
	app.writeJSON(w, http.StatusOK, struct {
		Bus    string      `json:"bus"`
		Index  []time.Time `json:"index"`
		Prices []float64   `json:"prices"`
	}{bus, run.Index, prices})
}

// EventsHandler returns the lifecycle events of a run.
func (app *App) EventsHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := app.run(w, r)
	if !ok {
		return
	}
	app.writeJSON(w, http.StatusOK, app.Store.Events(run.RunID))
}

func (app *App) run(w http.ResponseWriter, r *http.Request) (*results.Results, bool) {
	id := mux.Vars(r)["id"]
	run, ok := app.Store.Run(id)
	if !ok {
		app.writeError(w, http.StatusNotFound, "no run "+id)
	}
	return run, ok
}

func (app *App) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		app.Log.Error(err, "malformed JSON")
		app.writeError(w, http.StatusInternalServerError, "cannot encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	w.Write(body)
}

func (app *App) writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	body, _ := json.Marshal(map[string]string{"error": message})
	w.Write(body)
}

// Serve listens on addr until ctx is cancelled.
func (app *App) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		app.Log.Info("serving results", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
