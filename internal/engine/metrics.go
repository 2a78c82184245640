package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's collectors. A nil *Metrics records nothing.
type Metrics struct {
	rows            prometheus.Counter
	componentErrors *prometheus.CounterVec
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cleangrid",
			Subsystem: "engine",
			Name:      "rows_processed_total",
			Help:      "Rows fed through the row state machine.",
		}),
		componentErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cleangrid",
			Subsystem: "engine",
			Name:      "component_errors_total",
			Help:      "Components marked errored, by descriptor identity.",
		}, []string{"descriptor"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cleangrid",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Finished runs, by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cleangrid",
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a run from submission to the last reduction.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	for _, c := range []prometheus.Collector{m.rows, m.componentErrors, m.runs, m.runDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) onRows(n int64) {
	if m == nil || n == 0 {
		return
	}
	m.rows.Add(float64(n))
}

func (m *Metrics) onComponentError(identity string) {
	if m == nil {
		return
	}
	m.componentErrors.WithLabelValues(identity).Inc()
}

func (m *Metrics) onRunEnd(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(time.Since(started).Seconds())
}
