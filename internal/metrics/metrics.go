// Package metrics provides Prometheus metrics for reconciliation passes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/gymlog/internal/gym"
)

// Gym outcome label values.
const (
	OutcomeInserted  = "inserted"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeMalformed = "malformed"
	OutcomeStorage   = "storage_error"
)

// Recorder holds the gymlog metrics.
type Recorder struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry
	runtime   bool
	stats     StoreStats

	passes             prometheus.Counter
	passDuration       prometheus.Histogram
	gyms               *prometheus.CounterVec
	events             *prometheus.CounterVec
	membershipsDropped prometheus.Counter
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithNamespace sets the metric namespace.
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets the pass duration buckets.
func WithHistogramBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = buckets
		}
	}
}

// WithRegistry registers the metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(r *Recorder) {
		if reg != nil {
			r.registry = reg
		}
	}
}

// WithRuntimeCollectors also exports Go runtime and process metrics.
func WithRuntimeCollectors() Option {
	return func(r *Recorder) {
		r.runtime = true
	}
}

// New creates a Recorder on its own registry, so the default Go runtime
// collectors are not exported unless a registry carrying them is supplied.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "gymlog",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.runtime {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if r.stats != nil {
		r.registry.MustRegister(newStoreCollector(r.namespace, r.stats))
	}

	factory := promauto.With(r.registry)
	r.passes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "reconcile",
		Name:      "passes_total",
		Help:      "Reconciliation passes completed.",
	})
	r.passDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: "reconcile",
		Name:      "pass_duration_seconds",
		Help:      "Wall time of a reconciliation pass.",
		Buckets:   r.buckets,
	})
	r.gyms = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "reconcile",
		Name:      "gyms_total",
		Help:      "Observed gyms by reconciliation outcome.",
	}, []string{"outcome"})
	r.events = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "reconcile",
		Name:      "events_total",
		Help:      "Gym log events appended, by kind.",
	}, []string{"kind"})
	r.membershipsDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "reconcile",
		Name:      "memberships_dropped_total",
		Help:      "Observed memberships dropped as data-integrity faults.",
	})

	return r
}

// GymReconciled counts one gym with the given outcome.
func (r *Recorder) GymReconciled(outcome string) {
	r.gyms.WithLabelValues(outcome).Inc()
}

// EventsEmitted adds n events of kind.
func (r *Recorder) EventsEmitted(kind gym.EventKind, n int) {
	if n <= 0 {
		return
	}
	r.events.WithLabelValues(string(kind)).Add(float64(n))
}

// MembershipsDropped adds n dropped memberships.
func (r *Recorder) MembershipsDropped(n int) {
	if n <= 0 {
		return
	}
	r.membershipsDropped.Add(float64(n))
}

// PassCompleted records a finished pass and its duration.
func (r *Recorder) PassCompleted(d time.Duration) {
	r.passes.Inc()
	r.passDuration.Observe(d.Seconds())
}

// Registry returns the registry the metrics are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the registry to path in the text exposition format,
// for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
