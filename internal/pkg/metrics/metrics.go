// Package metrics exposes planner run statistics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	buildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_model_build_seconds",
		Help:    "Time spent assembling the linear program.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})
	solveSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_solve_seconds",
		Help:    "Time spent in the solver.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})
	modelVariables = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planner_model_variables",
		Help: "Columns of the last assembled model.",
	})
	modelRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planner_model_rows",
		Help: "Rows of the last assembled model.",
	})
	runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_runs_total",
		Help: "Completed runs by solver status.",
	}, []string{"status"})
	objective = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planner_objective",
		Help: "Objective value of the last optimal run.",
	})
)

// ObserveBuild records one model assembly.
func ObserveBuild(d time.Duration, vars, rows int) {
	buildSeconds.Observe(d.Seconds())
	modelVariables.Set(float64(vars))
	modelRows.Set(float64(rows))
}

// ObserveSolve records one solve and its outcome.
func ObserveSolve(d time.Duration, status string, obj float64) {
	solveSeconds.Observe(d.Seconds())
	runs.WithLabelValues(status).Inc()
	if status == "optimal" {
		objective.Set(obj)
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
