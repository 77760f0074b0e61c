package moderation

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bencyrus/safeupload/internal/apperr"
	"github.com/bencyrus/safeupload/internal/types"
)

// Metrics counts verdicts and failures per category.
type Metrics struct {
	verdicts *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the moderation collectors on reg, reusing ones that
// are already registered.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "moderation"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Moderation verdicts by category and status.",
		}, []string{"category", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Moderation requests that ended in an error, by category and error kind.",
		}, []string{"category", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Time from receiving an upload to its verdict.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900},
		}, []string{"category"}),
	}
	collectors := []prometheus.Collector{m.verdicts, m.failures, m.duration}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				collectors[i] = are.ExistingCollector
				continue
			}
			return nil, fmt.Errorf("register moderation metric: %w", err)
		}
	}
	m.verdicts = collectors[0].(*prometheus.CounterVec)
	m.failures = collectors[1].(*prometheus.CounterVec)
	m.duration = collectors[2].(*prometheus.HistogramVec)
	return m, nil
}

func (m *Metrics) observe(c types.Category, status types.Status, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(string(c)).Observe(elapsed.Seconds())
	if err != nil {
		m.failures.WithLabelValues(string(c), apperr.KindOf(err).String()).Inc()
		return
	}
	m.verdicts.WithLabelValues(string(c), string(status)).Inc()
}
