// Package enrichment serves the moderator's pre-fill view of staged records
// and the moderation list.
package enrichment

import (
	"context"
	"fmt"
	"time"

	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/common/logger"
	"landreg-workers/internal/common/metrics"
	"landreg-workers/internal/models"
)

// Store is the staging storage the read model reads from.
type Store interface {
	GetRecord(ctx context.Context, t models.EntityType, id string) (*models.StagingRecord, error)
	LatestPendingByCase(ctx context.Context, t models.EntityType, caseOpeningNumber string, district int) (*models.StagingRecord, error)
	FilesForRecord(ctx context.Context, rec *models.StagingRecord) ([]models.StagingFile, error)
	List(ctx context.Context, f models.ListFilter) ([]models.ListEntry, error)
}

type Matcher interface {
	Match(ctx context.Context, payload map[string]interface{}, targetDistrict int, entityType models.EntityType) (*models.MatchResult, error)
}

// MatchInfo tells the moderator whether the record already exists in
// production. Ambiguity is reported rather than resolved.
type MatchInfo struct {
	SameDistrict bool    `json:"sameDistrict"`
	MatchedID    *int64  `json:"matchedId"`
	Ambiguous    bool    `json:"ambiguous,omitempty"`
	Candidates   []int64 `json:"candidates,omitempty"`
}

// PrefillView is what the moderation form is populated from.
type PrefillView struct {
	ImportID  string                 `json:"importId"`
	Data      map[string]interface{} `json:"data"`
	MatchInfo MatchInfo              `json:"matchInfo"`
	Files     []models.FileView      `json:"files"`
}

type ReadModel struct {
	store   Store
	matcher Matcher
	logger  logger.Logger
}

func NewReadModel(store Store, matcher Matcher, log logger.Logger) *ReadModel {
	return &ReadModel{
		store:   store,
		matcher: matcher,
		logger:  log.WithFields(map[string]interface{}{"component": "enrichment"}),
	}
}

// ByStagingID builds the view of one PENDING record.
func (m *ReadModel) ByStagingID(ctx context.Context, entityType models.EntityType, id string) (*PrefillView, error) {
	defer metrics.ObserveSince("prefill", time.Now())
	if !entityType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown entity type %q", entityType))
	}
	rec, err := m.store.GetRecord(ctx, entityType, id)
	if err != nil {
		return nil, err
	}
	if models.IsTerminal(rec.Status) {
		return nil, apperrors.NewAlreadyProcessedError(rec.ID, string(rec.Status.Code()))
	}
	return m.view(ctx, rec)
}

// ByCase builds the view of the newest PENDING record filed under the case.
func (m *ReadModel) ByCase(ctx context.Context, entityType models.EntityType, caseOpeningNumber string, district int) (*PrefillView, error) {
	defer metrics.ObserveSince("prefill", time.Now())
	if !entityType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown entity type %q", entityType))
	}
	if caseOpeningNumber == "" || district <= 0 {
		return nil, apperrors.NewValidationError("case opening number and district are required")
	}
	rec, err := m.store.LatestPendingByCase(ctx, entityType, caseOpeningNumber, district)
	if err != nil {
		return nil, err
	}
	return m.view(ctx, rec)
}

// view always recomputes the match; the hint stored at ingest time is only
// compared against it.
func (m *ReadModel) view(ctx context.Context, rec *models.StagingRecord) (*PrefillView, error) {
	match, err := m.matcher.Match(ctx, rec.MatchPayload(), rec.TargetDistrict, rec.EntityType)
	if err != nil {
		return nil, err
	}
	if rec.MatchHint != nil && !rec.MatchHint.SameAs(match) {
		m.logger.Info("stale match hint", map[string]interface{}{
			"stagingId":  rec.ID,
			"entityType": rec.EntityType,
			"cached":     rec.MatchHint.Outcome,
			"current":    match.Outcome,
		})
	}

	files, err := m.store.FilesForRecord(ctx, rec)
	if err != nil {
		return nil, err
	}

	view := &PrefillView{
		ImportID: rec.ID,
		Data:     rec.Payload,
		MatchInfo: MatchInfo{
			SameDistrict: match.SameDistrict,
			MatchedID:    match.MatchedID,
			Ambiguous:    match.Ambiguous,
		},
		Files: make([]models.FileView, 0, len(files)),
	}
	if match.Ambiguous {
		view.MatchInfo.Candidates = match.CandidateIDs()
	}
	if view.Data == nil {
		view.Data = map[string]interface{}{}
	}
	for _, f := range files {
		view.Files = append(view.Files, f.View())
	}
	return view, nil
}

// List returns one page of pending staging records and production entities.
func (m *ReadModel) List(ctx context.Context, f models.ListFilter) ([]models.ListEntry, error) {
	defer metrics.ObserveSince("list", time.Now())
	if f.EntityType != "" && !f.EntityType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown entity type %q", f.EntityType))
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, apperrors.NewValidationError("limit and offset must not be negative")
	}
	return m.store.List(ctx, f)
}
