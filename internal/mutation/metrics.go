package mutation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts mutations and refreshes. A nil *Metrics records nothing.
type Metrics struct {
	reg       *prometheus.Registry
	mutations *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	refreshes *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aikeys_mutations_total",
			Help: "Credential mutations by operation, scope and result.",
		}, []string{"op", "scope", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aikeys_mutation_duration_seconds",
			Help:    "Time from sending a mutation to its settlement.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aikeys_refreshes_total",
			Help: "Full refetches of provider and settings records by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// WriteTextfile writes all metrics in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.reg)
}

func (m *Metrics) observeMutation(op Op, scope string, err error, seconds float64) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(string(op), scope, Kind(err)).Inc()
	if !IsLocal(err) {
		m.duration.WithLabelValues(string(op)).Observe(seconds)
	}
}

func (m *Metrics) observeRefresh(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.refreshes.WithLabelValues(result).Inc()
}
