package webservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/ohowland/cgc_planner/internal/pkg/results"
	"gotest.tools/v3/assert"
)

func newApp(t *testing.T) (*App, *results.Results) {
	store := NewStore()
	r := &results.Results{
		RunID:     uuid.New(),
		Status:    "optimal",
		Objective: 920,
		Index:     []time.Time{time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
		Units:     []results.Unit{{Label: "pv", Capacity: 80, Series: map[string][]float64{"flow": {40}}}},
		Prices:    map[string][]float64{"elec": {10}},
	}
	ctx := context.Background()
	assert.NilError(t, store.Write(ctx, msg.New(r.RunID, msg.Status, results.Event{RunID: r.RunID, Stage: results.StageStarted})))
	assert.NilError(t, store.Write(ctx, msg.New(r.RunID, msg.Result, r)))
	return &App{Store: store, Log: logr.Discard()}, r
}

func get(t *testing.T, app *App, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.Router().ServeHTTP(w, httptest.NewRequest("GET", "http://example.com"+path, nil))
	return w
}

func TestBase(t *testing.T) {
	app, _ := newApp(t)
	w := get(t, app, "/")
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Equal(t, w.Header().Get("Content-Type"), "application/json; charset=UTF-8")
}

func TestRuns(t *testing.T) {
	app, r := newApp(t)
	w := get(t, app, "/runs")
	assert.Equal(t, w.Code, http.StatusOK)

	var got []Summary
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, len(got), 1)
	assert.Equal(t, got[0].RunID, r.RunID)
	assert.Equal(t, got[0].Units, 1)
}

func TestRunByIDAndLatest(t *testing.T) {
	app, r := newApp(t)
	for _, id := range []string{r.RunID.String(), "latest"} {
		w := get(t, app, "/runs/"+id)
		assert.Equal(t, w.Code, http.StatusOK, id)

		var got results.Results
		assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, got.RunID, r.RunID)
		assert.Equal(t, got.Objective, 920.0)
	}
}

func TestUnitAndPrices(t *testing.T) {
	app, r := newApp(t)
	w := get(t, app, "/runs/"+r.RunID.String()+"/units/pv")
	assert.Equal(t, w.Code, http.StatusOK)
	var u results.Unit
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, u.Capacity, 80.0)

	w = get(t, app, "/runs/latest/prices/elec")
	assert.Equal(t, w.Code, http.StatusOK)
	var p struct {
		Prices []float64 `json:"prices"`
	}
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.DeepEqual(t, p.Prices, []float64{10})

	w = get(t, app, "/runs/latest/events")
	assert.Equal(t, w.Code, http.StatusOK)
	var events []results.Event
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Equal(t, len(events), 1)
}

func TestNotFound(t *testing.T) {
	app, r := newApp(t)
	for _, path := range []string{
		"/runs/" + uuid.New().String(),
		"/runs/not-a-uuid",
		"/runs/" + r.RunID.String() + "/units/wind",
		"/runs/latest/prices/heat",
	} {
		w := get(t, app, path)
		assert.Equal(t, w.Code, http.StatusNotFound, path)
	}

	empty := &App{Store: NewStore(), Log: logr.Discard()}
	assert.Equal(t, get(t, empty, "/runs/latest").Code, http.StatusNotFound)
}

func TestMetricsRoute(t *testing.T) {
	app, _ := newApp(t)
	w := get(t, app, "/metrics")
	assert.Equal(t, w.Code, http.StatusOK)
}
