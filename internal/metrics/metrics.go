// Package metrics exposes Prometheus counters and histograms for the
// proxy's submit/read/delete/log-stream operations, mounted on /metrics via
// promhttp.Handler() (following the teacher's internal/server/oauth_http.go).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the proxy's operation counters and duration histograms.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	SubmitFailures  *prometheus.CounterVec
}

// New registers and returns a fresh Metrics set against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kbatch_proxy",
			Name:      "requests_total",
			Help:      "Total number of handled API requests, by operation and status.",
		}, []string{"operation", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kbatch_proxy",
			Name:      "request_duration_seconds",
			Help:      "Request handling duration in seconds, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		SubmitFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kbatch_proxy",
			Name:      "submit_failures_total",
			Help:      "Total number of failed job/cronjob submissions; the phase label carries the workload kind.",
		}, []string{"phase"}),
	}
}

// ObserveRequest records one completed request against operation/status.
func (m *Metrics) ObserveRequest(operation, status string, seconds float64) {
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveSubmitFailure records a submission failure under the given
// "phase" label value. The submit handler passes the workload kind ("job"
// or "cronjob"); which pipeline step failed is not recorded.
func (m *Metrics) ObserveSubmitFailure(phase string) {
	m.SubmitFailures.WithLabelValues(phase).Inc()
}
