package ingestbatch

import (
	"context"
	"encoding/json"
	"fmt"

	"landreg-workers/internal/common/camunda"
	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/common/logger"
	"landreg-workers/internal/ingest"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "staging-ingest-batch"
)

type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Summary, error)
}

type Handler struct {
	config   *Config
	ingester Ingester
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, ingester Ingester, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		ingester: ingester,
		errors:   apperrors.NewErrorHandler(log),
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		stdErr := apperrors.NewValidationError(fmt.Sprintf("parse input: %v", err))
		h.errors.HandleJobError(context.Background(), client, job, stdErr)
		return stdErr
	}

	output, err := h.execute(ctx, &input)
	if err == nil {
		err = camunda.CompleteJob(context.Background(), client, job, output)
	}
	if err != nil {
		h.errors.HandleJobError(context.Background(), client, job, err)
		return err
	}
	return nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewValidationError("input cannot be nil")
	}

	summary, err := h.ingester.Ingest(ctx, input.Request)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, summary.AcceptedRecords)
	for _, rs := range summary.Records {
		if rs.Accepted {
			ids = append(ids, rs.StagingID)
		}
	}
	return &Output{
		BatchID:         summary.BatchID,
		TotalRecords:    summary.TotalRecords,
		AcceptedRecords: summary.AcceptedRecords,
		RejectedRecords: summary.RejectedRecords,
		Replayed:        summary.Replayed,
		StagingIDs:      ids,
		IngestSummary:   summary,
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
