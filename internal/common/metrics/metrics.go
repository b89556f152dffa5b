package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	RecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staging_records_ingested_total",
			Help: "Staged records received, by entity type and whether they were accepted",
		},
		[]string{"entity_type", "result"},
	)

	MatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staging_match_outcomes_total",
			Help: "Matcher classifications by entity type and outcome",
		},
		[]string{"entity_type", "outcome"},
	)

	Promotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staging_promotions_total",
			Help: "Promotion attempts by entity type, decision and result code",
		},
		[]string{"entity_type", "decision", "result"},
	)

	Rejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staging_rejections_total",
			Help: "Rejection attempts by entity type and result code",
		},
		[]string{"entity_type", "result"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "staging_operation_duration_seconds",
			Help:    "Duration of pipeline operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// ObserveSince records the time elapsed since start for operation.
func ObserveSince(operation string, start time.Time) {
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Result turns an error code into a metric label.
func Result(code string) string {
	if code == "" {
		return "ok"
	}
	return code
}
