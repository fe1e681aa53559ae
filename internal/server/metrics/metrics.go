// Package metrics exposes Prometheus instruments for the zip cache, the
// extraction pipeline and the keyed locks.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dirlist"

// Lock timeout scopes.
const (
	ScopeDestination = "destination"
	ScopeZip         = "zip"
)

// Metrics owns a private registry so that tests can build independent
// instances.
type Metrics struct {
	Registry *prometheus.Registry

	ZipBuilds            prometheus.Counter
	ZipReuses            prometheus.Counter
	ExtractionsSubmitted prometheus.Counter
	ExtractionsFinished  *prometheus.CounterVec
	LockTimeouts         *prometheus.CounterVec
	PoolQueueDepth       prometheus.Gauge
	PoolRunning          prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ZipBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zip_builds_total",
			Help:      "Directory zip archives built.",
		}),
		ZipReuses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zip_reuses_total",
			Help:      "Directory zip requests served from a fresh cached archive.",
		}),
		ExtractionsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_submitted_total",
			Help:      "Extraction jobs accepted.",
		}),
		ExtractionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_finished_total",
			Help:      "Extraction jobs finished, by terminal state.",
		}, []string{"state"}),
		LockTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_timeouts_total",
			Help:      "Keyed lock acquisitions that timed out, by scope.",
		}, []string{"scope"}),
		PoolQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workerpool_queue_depth",
			Help:      "Extraction tasks waiting for a worker.",
		}),
		PoolRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workerpool_running",
			Help:      "Extraction tasks currently running.",
		}),
	}

	m.Registry.MustRegister(
		m.ZipBuilds,
		m.ZipReuses,
		m.ExtractionsSubmitted,
		m.ExtractionsFinished,
		m.LockTimeouts,
		m.PoolQueueDepth,
		m.PoolRunning,
	)
	return m
}

// ObservePool records a worker pool snapshot.
func (m *Metrics) ObservePool(queued, running int) {
	m.PoolQueueDepth.Set(float64(queued))
	m.PoolRunning.Set(float64(running))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
