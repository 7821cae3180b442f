package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters. A single instance is created in
// main and shared by the recorder and the retention policies.
type Metrics struct {
	registry *prometheus.Registry

	RecordsWritten *prometheus.CounterVec
	RecordsDropped prometheus.Counter
	PolicyRuns     *prometheus.CounterVec
	PolicyErrors   *prometheus.CounterVec
}

// New registers the pipeline counters on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.RecordsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "activity_records_written_total",
		Help: "Activity records persisted, by activity type.",
	}, []string{"activity_type"})

	m.RecordsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "activity_records_dropped_total",
		Help: "Activity records lost to persistence failures.",
	})

	m.PolicyRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retention_policy_runs_total",
		Help: "Retention policy executions, by policy name.",
	}, []string{"policy"})

	m.PolicyErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retention_policy_record_errors_total",
		Help: "Per-record failures inside retention policy runs.",
	}, []string{"policy"})

	m.registry.MustRegister(m.RecordsWritten, m.RecordsDropped, m.PolicyRuns, m.PolicyErrors)
	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
