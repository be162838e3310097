package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/studydesk/internal/core/store"
)

// StoreMetrics counts dispatched actions and task lifecycles. It implements
// ports.TaskObserver and its Listen method is a store.Listener.
type StoreMetrics struct {
	service string

	actionsTotal  *prometheus.CounterVec
	tasksTotal    *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	tasksInFlight *prometheus.GaugeVec
}

func NewStoreMetrics(service string, registry prometheus.Registerer) *StoreMetrics {
	actionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studydesk",
			Subsystem: "store",
			Name:      "actions_total",
			Help:      "Total dispatched actions by slice and kind.",
		},
		[]string{"service", "slice", "kind"},
	)
	tasksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studydesk",
			Subsystem: "tasks",
			Name:      "finished_total",
			Help:      "Total finished asynchronous tasks by kind and status.",
		},
		[]string{"service", "kind", "status"},
	)
	taskDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studydesk",
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "Asynchronous task duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 3, 5, 10, 30, 60, 300},
		},
		[]string{"service", "kind"},
	)
	tasksInFlight := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "studydesk",
			Subsystem: "tasks",
			Name:      "in_flight",
			Help:      "Number of running asynchronous tasks.",
		},
		[]string{"service", "kind"},
	)

	registry.MustRegister(actionsTotal, tasksTotal, taskDuration, tasksInFlight)

	return &StoreMetrics{
		service:       service,
		actionsTotal:  actionsTotal,
		tasksTotal:    tasksTotal,
		taskDuration:  taskDuration,
		tasksInFlight: tasksInFlight,
	}
}

func (m *StoreMetrics) Listen(_ store.State, action store.Action) {
	m.actionsTotal.WithLabelValues(m.service, action.Slice(), action.Kind()).Inc()
}

func (m *StoreMetrics) StartTask(kind string) {
	m.tasksInFlight.WithLabelValues(m.service, kind).Inc()
}

func (m *StoreMetrics) FinishTask(kind string, duration time.Duration, err error) {
	m.tasksInFlight.WithLabelValues(m.service, kind).Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.tasksTotal.WithLabelValues(m.service, kind, status).Inc()
	m.taskDuration.WithLabelValues(m.service, kind).Observe(duration.Seconds())
}
