// Package metrics exposes the sync engine's counters on a Prometheus
// registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for processed queue entries
const (
	OutcomeAcknowledged = "acknowledged"
	OutcomeRequeued     = "requeued"
	OutcomeDropped      = "dropped"
	OutcomeSuperseded   = "superseded"
)

type Metrics struct {
	Registry *prometheus.Registry

	PendingMutations prometheus.Gauge
	Mutations        *prometheus.CounterVec
	RemoteDuration   *prometheus.HistogramVec
	RemoteErrors     *prometheus.CounterVec
	CacheFallbacks   prometheus.Counter
	Drains           prometheus.Counter
}

// New registers the engine's metrics on a fresh registry
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		PendingMutations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "habitsync_pending_mutations",
			Help: "Mutations waiting in the local queue",
		}),
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "habitsync_mutations_total",
				Help: "Queue entries by kind and final outcome",
			},
			[]string{"kind", "outcome"},
		),
		RemoteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "habitsync_remote_call_duration_seconds",
				Help:    "Remote service call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		RemoteErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "habitsync_remote_errors_total",
				Help: "Failed remote calls by operation and class",
			},
			[]string{"op", "class"},
		),
		CacheFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitsync_cache_fallbacks_total",
			Help: "Reads served from the cached snapshot because the remote failed",
		}),
		Drains: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "habitsync_queue_drains_total",
			Help: "Queue drain passes started",
		}),
	}

	m.Registry.MustRegister(
		m.PendingMutations,
		m.Mutations,
		m.RemoteDuration,
		m.RemoteErrors,
		m.CacheFallbacks,
		m.Drains,
	)
	return m
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingMutations.Set(float64(n))
}

func (m *Metrics) Mutation(kind, outcome string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(kind, outcome).Inc()
}

// ObserveRemote records one remote call. class is empty on success.
func (m *Metrics) ObserveRemote(op string, took time.Duration, class string) {
	if m == nil {
		return
	}
	m.RemoteDuration.WithLabelValues(op).Observe(took.Seconds())
	if class != "" {
		m.RemoteErrors.WithLabelValues(op, class).Inc()
	}
}

func (m *Metrics) CacheFallback() {
	if m == nil {
		return
	}
	m.CacheFallbacks.Inc()
}

func (m *Metrics) DrainStarted() {
	if m == nil {
		return
	}
	m.Drains.Inc()
}

// WriteFile exports the registry in the node_exporter textfile format
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
