// Package observability turns run lifecycle events into Prometheus
// metrics. The collectors plug into the orchestrator as lifecycle hooks.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/anneal/pkg/domain"
)

// Metrics holds the run collectors. Register them on a registry and merge
// Hooks() into the orchestrator's lifecycle hooks.
type Metrics struct {
	tasksStarted  *prometheus.CounterVec
	tasksDone     *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	batchSize     *prometheus.HistogramVec
	batchFailures *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them on the registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		tasksStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anneal_tasks_started_total",
				Help: "Tasks dispatched to the executor",
			},
			[]string{"phase"},
		),
		tasksDone: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anneal_tasks_done_total",
				Help: "Gathered task outcomes",
			},
			[]string{"phase", "outcome"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anneal_task_duration_seconds",
				Help:    "Wall time per gathered task",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"phase"},
		),
		batchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anneal_batch_size",
				Help:    "Tasks per dispatch batch",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"phase"},
		),
		batchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anneal_batch_failures_total",
				Help: "Failed tasks per dispatch batch",
			},
			[]string{"phase"},
		),
	}
	registry.MustRegister(m.tasksStarted, m.tasksDone, m.taskDuration, m.batchSize, m.batchFailures)
	return m
}

// Hooks returns the lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTaskStart: func(_ context.Context, e *domain.TaskEvent) {
			m.tasksStarted.WithLabelValues(string(e.Phase)).Inc()
		},
		OnTaskDone: func(_ context.Context, e *domain.TaskEvent) {
			outcome := "success"
			if e.Err != nil {
				outcome = "failure"
			}
			m.tasksDone.WithLabelValues(string(e.Phase), outcome).Inc()
			m.taskDuration.WithLabelValues(string(e.Phase)).Observe(e.Duration.Seconds())
		},
		OnBatchDone: func(_ context.Context, e *domain.BatchEvent) {
			m.batchSize.WithLabelValues(string(e.Phase)).Observe(float64(e.Size))
			m.batchFailures.WithLabelValues(string(e.Phase)).Add(float64(e.Failures))
		},
	}
}
