// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueJobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_enqueued_total",
			Help: "Total number of application jobs enqueued",
		},
		[]string{"platform"},
	)

	QueueJobsClaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_jobs_claimed_total",
			Help: "Total number of jobs claimed through the poll endpoint",
		},
	)

	QueueEmptyPolls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_empty_polls_total",
			Help: "Total number of polls that returned no job",
		},
	)

	QueueBrokerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_broker_errors_total",
			Help: "Total number of broker faults absorbed by the queue service",
		},
		[]string{"operation"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of jobs currently waiting in the queue",
		},
	)

	WorkerApplyAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_apply_attempts_total",
			Help: "Total number of platform apply attempts",
		},
		[]string{"platform"},
	)

	WorkerJobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_processed_total",
			Help: "Total number of jobs processed by the worker, by terminal status",
		},
		[]string{"platform", "status"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"platform"},
	)

	ApplicationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "applications_created_total",
			Help: "Total number of application records created",
		},
	)

	ApplicationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applications_completed_total",
			Help: "Total number of application records transitioned to a terminal state",
		},
		[]string{"status"},
	)
)
