package camunda

import (
	"context"
	"time"

	"landreg-workers/internal/common/config"
	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/common/logger"
	"landreg-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler reports the job outcome to the broker itself and returns the
// error it reported, if any.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

// JobRecorder receives one call per finished job.
type JobRecorder interface {
	RecordJob(ctx context.Context, taskType, status string, duration time.Duration)
}

// StartWorker opens a job worker for taskType. It returns nil when the
// worker is disabled.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler JobHandler, recorder JobRecorder, log logger.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, handler, recorder)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return jobWorker
}

// Instrument adapts handler to the Zeebe handler signature and records job
// metrics around it.
func Instrument(taskType string, handler JobHandler, recorder JobRecorder) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

		start := time.Now()
		err := handler.Handle(client, job)
		elapsed := time.Since(start)
		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())

		status := "completed"
		if err != nil {
			status = "failed"
			metrics.WorkerJobsFailed.WithLabelValues(taskType, string(apperrors.CodeOf(err))).Inc()
		} else {
			metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		}
		if recorder != nil {
			recorder.RecordJob(context.Background(), taskType, status, elapsed)
		}
	}
}

// CompleteJob completes job with output as its variables.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if _, err := cmd.Send(ctx); err != nil {
		return apperrors.NewTransientError("complete job", err)
	}
	return nil
}
