package rejectrecord

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"landreg-workers/internal/common/camunda"
	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/common/logger"
	"landreg-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "staging-reject-record"
)

type Rejecter interface {
	Reject(ctx context.Context, entityType models.EntityType, stagingID string, actor models.Actor, reason string) error
}

type Handler struct {
	config   *Config
	rejecter Rejecter
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, rejecter Rejecter, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		rejecter: rejecter,
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
	entityType, err := models.ParseEntityType(input.EntityType)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	id := strings.TrimSpace(input.StagingID)
	if err := h.rejecter.Reject(ctx, entityType, id, input.Actor, input.Reason); err != nil {
		return nil, err
	}
	return &Output{StagingID: id, Status: models.StatusRejected}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
