package promoterecord

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
	TaskType = "staging-promote-record"
)

type Promoter interface {
	Promote(ctx context.Context, entityType models.EntityType, stagingID string, decision models.Decision, actor models.Actor) (*models.ProductionEntityRef, error)
}

type Handler struct {
	config   *Config
	promoter Promoter
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, promoter Promoter, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		promoter: promoter,
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
	decision, err := toDecision(input.Decision)
	if err != nil {
		return nil, err
	}

	ref, err := h.promoter.Promote(ctx, entityType, strings.TrimSpace(input.StagingID), decision, input.Actor)
	if err != nil {
		return nil, err
	}
	return &Output{
		ProductionEntity: ref,
		ProductionID:     ref.ID,
		Created:          ref.Created,
	}, nil
}

func toDecision(in DecisionInput) (models.Decision, error) {
	var d models.Decision
	switch models.DecisionKind(strings.ToUpper(strings.TrimSpace(in.Kind))) {
	case models.DecisionCreate:
		d = models.Create()
	case models.DecisionMerge:
		d = models.MergeInto(in.MatchedID, in.Fields...)
	default:
		return d, apperrors.NewValidationError(fmt.Sprintf("decision kind must be CREATE or MERGE, got %q", in.Kind))
	}
	d.Note = strings.TrimSpace(in.Note)
	return d, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
