package task

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pawtrack/pawtrack/failure"
)

// Metrics holds prometheus collectors for task execution.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewMetrics creates task collectors and registers them with reg.
// A nil reg leaves them unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pawtrack",
			Name:      "tasks_total",
			Help:      "Background tasks completed, by task name and outcome.",
		}, []string{"task", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pawtrack",
			Name:      "task_duration_seconds",
			Help:      "Time spent in the background phase of a task.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pawtrack",
			Name:      "tasks_in_flight",
			Help:      "Tasks submitted but not yet finished.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.total, m.duration, m.inFlight)
	}
	return m
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) finished(name string, err *failure.Error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = err.Category.String()
	}
	m.inFlight.Dec()
	m.total.WithLabelValues(name, outcome).Inc()
	m.duration.WithLabelValues(name).Observe(d.Seconds())
}
