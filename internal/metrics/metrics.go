// Package metrics exposes Prometheus collectors for orchestration runs.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sightclick"

// Recorder holds the collectors for one registry.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	attemptsTotal  *prometheus.CounterVec
	oracleDuration *prometheus.HistogramVec
	diffPercent    prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Orchestration runs by terminal reason.",
		}, []string{"reason"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of an orchestration run.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		}),
		attemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Locate/act/verify attempts by scope and result.",
		}, []string{"scope", "result"}),
		oracleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_request_duration_seconds",
			Help:      "Vision oracle latency.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"status"}),
		diffPercent: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "diff_percent",
			Help:      "Observed before/after frame difference.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(reason string, d time.Duration) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(reason).Inc()
	r.runDuration.Observe(d.Seconds())
}

// ObserveAttempt records one attempt. result is "changed", "unchanged",
// "not_found" or "error".
func (r *Recorder) ObserveAttempt(scope, result string) {
	if r == nil {
		return
	}
	r.attemptsTotal.WithLabelValues(scope, result).Inc()
}

// ObserveOracle records the latency of one oracle call.
func (r *Recorder) ObserveOracle(d time.Duration, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.oracleDuration.WithLabelValues(status).Observe(d.Seconds())
}

// ObserveDiff records a verification diff percentage.
func (r *Recorder) ObserveDiff(pct float64) {
	if r == nil {
		return
	}
	r.diffPercent.Observe(pct)
}
