package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts units by outcome. A nil *Metrics records nothing.
type Metrics struct {
	submitted prometheus.Counter
	finished  *prometheus.CounterVec
	running   prometheus.Gauge
}

// NewMetrics creates the scheduler collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cleangrid",
			Subsystem: "scheduler",
			Name:      "tasks_submitted_total",
			Help:      "Total units submitted to the scheduler",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cleangrid",
			Subsystem: "scheduler",
			Name:      "tasks_finished_total",
			Help:      "Total units finished, by final state",
		}, []string{"state"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cleangrid",
			Subsystem: "scheduler",
			Name:      "tasks_running",
			Help:      "Units currently running",
		}),
	}
	for _, c := range []prometheus.Collector{m.submitted, m.finished, m.running} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) onSubmit() {
	if m != nil {
		m.submitted.Inc()
	}
}

func (m *Metrics) onStart() {
	if m != nil {
		m.running.Inc()
	}
}

func (m *Metrics) onFinish(s State, started bool) {
	if m == nil {
		return
	}
	if started {
		m.running.Dec()
	}
	m.finished.WithLabelValues(s.String()).Inc()
}
