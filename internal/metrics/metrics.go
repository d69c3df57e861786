// Package metrics holds the engine's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksSucceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskspace",
		Subsystem: "executor",
		Name:      "tasks_succeeded_total",
		Help:      "Total task executions that completed successfully.",
	}, []string{"task_type"})

	TasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskspace",
		Subsystem: "executor",
		Name:      "tasks_failed_total",
		Help:      "Total task executions that ended in terminal failure.",
	}, []string{"task_type"})

	TasksTimedOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskspace",
		Subsystem: "executor",
		Name:      "tasks_timed_out_total",
		Help:      "Total task executions aborted by their timeout.",
	}, []string{"task_type"})

	TaskRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskspace",
		Subsystem: "executor",
		Name:      "retries_total",
		Help:      "Total retry attempts requeued by the executor.",
	}, []string{"task_type"})

	TaskDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taskspace",
		Subsystem: "executor",
		Name:      "task_duration_seconds",
		Help:      "Task execution time per attempt in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"task_type"})

	TasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taskspace",
		Subsystem: "executor",
		Name:      "tasks_inflight",
		Help:      "Tasks currently being executed by the pool.",
	})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "taskspace",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Items buffered per space.",
	}, []string{"space"})

	ScheduledFires = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskspace",
		Subsystem: "scheduler",
		Name:      "fires_total",
		Help:      "Scheduled tasks enqueued, labelled by schedule type.",
	}, []string{"schedule_type"})
)
