package listrecords

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
	TaskType = "staging-list-records"
)

type Lister interface {
	List(ctx context.Context, f models.ListFilter) ([]models.ListEntry, error)
}

type Handler struct {
	config *Config
	lister Lister
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, lister Lister, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		lister: lister,
		errors: apperrors.NewErrorHandler(log),
		logger: log,
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

	f := models.ListFilter{
		District: input.District,
		BatchID:  strings.TrimSpace(input.BatchID),
		Limit:    input.Limit,
		Offset:   input.Offset,
	}
	if raw := strings.TrimSpace(input.EntityType); raw != "" {
		t, err := models.ParseEntityType(raw)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		f.EntityType = t
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, apperrors.NewValidationError("limit and offset must not be negative")
	}
	f = f.Normalized()
	// one extra row tells whether another page exists, and the store clamps
	// to MaxListLimit, so a page holds at most MaxListLimit-1 entries
	if f.Limit >= models.MaxListLimit {
		f.Limit = models.MaxListLimit - 1
	}

	probe := f
	probe.Limit = f.Limit + 1
	entries, err := h.lister.List(ctx, probe)
	if err != nil {
		return nil, err
	}

	hasMore := len(entries) > f.Limit
	if hasMore {
		entries = entries[:f.Limit]
	}
	return &Output{
		Entries: entries,
		Count:   len(entries),
		Limit:   f.Limit,
		Offset:  f.Offset,
		HasMore: hasMore,
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
