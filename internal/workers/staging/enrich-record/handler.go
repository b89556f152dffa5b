package enrichrecord

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"landreg-workers/internal/common/camunda"
	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/common/logger"
	"landreg-workers/internal/enrichment"
	"landreg-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "staging-enrich-record"
)

type Prefiller interface {
	ByStagingID(ctx context.Context, entityType models.EntityType, id string) (*enrichment.PrefillView, error)
	ByCase(ctx context.Context, entityType models.EntityType, caseOpeningNumber string, district int) (*enrichment.PrefillView, error)
}

type Handler struct {
	config    *Config
	prefiller Prefiller
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, prefiller Prefiller, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		prefiller: prefiller,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
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

	var view *enrichment.PrefillView
	if id := strings.TrimSpace(input.StagingID); id != "" {
		view, err = h.prefiller.ByStagingID(ctx, entityType, id)
	} else {
		view, err = h.prefiller.ByCase(ctx, entityType, strings.TrimSpace(input.CaseOpeningNumber), input.District)
	}
	if err != nil {
		return nil, err
	}

	return &Output{
		Prefill:   view,
		MatchedID: view.MatchInfo.MatchedID,
		Ambiguous: view.MatchInfo.Ambiguous,
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
