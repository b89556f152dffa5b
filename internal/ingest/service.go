// Package ingest stages field-captured records and their files.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/common/logger"
	"landreg-workers/internal/common/metrics"
	"landreg-workers/internal/models"
	"landreg-workers/internal/notify"
	"landreg-workers/internal/repository"
	"landreg-workers/pkg/recordschema"

	"github.com/google/uuid"
)

type Store interface {
	CreateBatch(ctx context.Context, w repository.BatchWrite) error
}

type Matcher interface {
	Match(ctx context.Context, payload map[string]interface{}, targetDistrict int, entityType models.EntityType) (*models.MatchResult, error)
}

// SchemaValidator checks a payload's shape.
type SchemaValidator interface {
	Validate(entityType string, payload map[string]interface{}) ([]recordschema.Violation, error)
}

type Config struct {
	MaxRecordsPerBatch int
}

type Dependencies struct {
	Store     Store
	Matcher   Matcher
	Schemas   SchemaValidator
	Replay    ReplayCache
	Publisher notify.Publisher
	Logger    logger.Logger
	Now       func() time.Time
	NewID     func() string
}

type Service struct {
	config    Config
	store     Store
	matcher   Matcher
	schemas   SchemaValidator
	replay    ReplayCache
	publisher notify.Publisher
	logger    logger.Logger
	now       func() time.Time
	newID     func() string
}

func NewService(deps Dependencies, config Config) *Service {
	s := &Service{
		config:    config,
		store:     deps.Store,
		matcher:   deps.Matcher,
		schemas:   deps.Schemas,
		replay:    deps.Replay,
		publisher: deps.Publisher,
		logger:    deps.Logger.WithFields(map[string]interface{}{"component": "ingest"}),
		now:       deps.Now,
		newID:     deps.NewID,
	}
	if s.replay == nil {
		s.replay = NoopReplayCache{}
	}
	if s.publisher == nil {
		s.publisher = notify.NoopPublisher{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.config.MaxRecordsPerBatch <= 0 {
		s.config.MaxRecordsPerBatch = 500
	}
	return s
}

// Ingest validates every record, matches the accepted ones and stages them
// with their files in a single write. Invalid records are reported in the
// summary without failing the rest of the batch.
func (s *Service) Ingest(ctx context.Context, req Request) (*Summary, error) {
	defer metrics.ObserveSince("ingest", time.Now())

	normalizeRequest(&req)
	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}

	key := ReplayKey(&req)
	if key != "" {
		if cached, ok, err := s.replay.Lookup(ctx, key); err != nil {
			s.logger.Warn("replay cache unavailable", map[string]interface{}{"error": err})
		} else if ok {
			s.logger.Info("submission replayed", map[string]interface{}{"batchId": cached.BatchID})
			cached.Replayed = true
			return cached, nil
		}
	}

	now := s.now().UTC()
	batch := models.ImportBatch{
		ID:                s.newID(),
		TargetDistrict:    req.TargetDistrict,
		CaseOpeningNumber: req.CaseOpeningNumber,
		SubmittedBy:       req.SubmittedBy,
		SubmissionKey:     req.SubmissionKey,
		TotalRecords:      len(req.Records),
		CreatedAt:         now,
	}
	summary := &Summary{
		BatchID:      batch.ID,
		TotalRecords: len(req.Records),
		Records:      make([]RecordSummary, 0, len(req.Records)),
		Files:        make([]FileSummary, 0, len(req.Files)),
	}

	var (
		records    []models.StagingRecord
		recordIdxs []int
	)
	for i, in := range req.Records {
		rs, rec, err := s.stageRecord(ctx, i, in, &batch)
		if err != nil {
			return nil, err
		}
		summary.Records = append(summary.Records, rs)
		if rec == nil {
			summary.RejectedRecords++
			continue
		}
		summary.AcceptedRecords++
		records = append(records, *rec)
		recordIdxs = append(recordIdxs, i)
	}
	batch.AcceptedRecords = summary.AcceptedRecords

	staged := make(map[int]*models.StagingRecord, len(records))
	for j := range records {
		staged[recordIdxs[j]] = &records[j]
	}

	var files []models.StagingFile
	for i, in := range req.Files {
		fs, f := s.stageFile(i, in, &batch, staged)
		summary.Files = append(summary.Files, fs)
		if f != nil {
			files = append(files, *f)
		}
	}

	if err := s.store.CreateBatch(ctx, repository.BatchWrite{Batch: batch, Records: records, Files: files}); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateEntity) && req.SubmissionKey != "" {
			return nil, apperrors.NewDuplicateEntityError(
				fmt.Sprintf("submission %s was already staged for district %d", req.SubmissionKey, req.TargetDistrict))
		}
		return nil, err
	}

	for _, rs := range summary.Records {
		metrics.RecordsIngested.WithLabelValues(typeLabel(rs.Type), acceptedLabel(rs.Accepted)).Inc()
	}
	if key != "" {
		if err := s.replay.Remember(ctx, key, summary); err != nil {
			s.logger.Warn("replay cache not updated", map[string]interface{}{"error": err, "batchId": batch.ID})
		}
	}

	s.logger.Info("batch staged", map[string]interface{}{
		"batchId":  batch.ID,
		"district": batch.TargetDistrict,
		"accepted": summary.AcceptedRecords,
		"rejected": summary.RejectedRecords,
		"files":    len(files),
	})
	notify.Deliver(ctx, s.publisher, s.logger, notify.Event{
		Type:       notify.EventBatchIngested,
		BatchID:    batch.ID,
		District:   batch.TargetDistrict,
		Actor:      batch.SubmittedBy,
		OccurredAt: now,
		Detail: map[string]interface{}{
			"caseOpeningNumber": batch.CaseOpeningNumber,
			"acceptedRecords":   summary.AcceptedRecords,
			"rejectedRecords":   summary.RejectedRecords,
		},
	})
	return summary, nil
}

func normalizeRequest(req *Request) {
	req.CaseOpeningNumber = strings.TrimSpace(req.CaseOpeningNumber)
	req.SubmittedBy = strings.TrimSpace(req.SubmittedBy)
	req.SubmissionKey = strings.TrimSpace(req.SubmissionKey)
}

func (s *Service) validateRequest(req *Request) error {
	var problems []string
	if req.TargetDistrict <= 0 {
		problems = append(problems, "targetDistrict is required")
	}
	if req.CaseOpeningNumber == "" {
		problems = append(problems, "caseOpeningNumber is required")
	}
	if req.SubmittedBy == "" {
		problems = append(problems, "submittedBy is required")
	}
	if len(req.Records) == 0 {
		problems = append(problems, "records must not be empty")
	}
	if len(req.Records) > s.config.MaxRecordsPerBatch {
		problems = append(problems, fmt.Sprintf("at most %d records per batch", s.config.MaxRecordsPerBatch))
	}
	if len(problems) > 0 {
		return apperrors.NewValidationError(strings.Join(problems, "; "))
	}
	return nil
}

// stageRecord returns the record's summary and, when it is accepted, the
// staging row to write. Only a matcher failure aborts the batch.
func (s *Service) stageRecord(ctx context.Context, index int, in RecordInput, batch *models.ImportBatch) (RecordSummary, *models.StagingRecord, error) {
	rs := RecordSummary{Index: index, Type: in.Type}

	entityType, err := models.ParseEntityType(in.Type)
	if err != nil {
		rs.Errors = []recordschema.Violation{{Field: "type", Message: err.Error(), Code: "INVALID_TYPE"}}
		return rs, nil, nil
	}
	rs.Type = string(entityType)

	violations, err := s.schemas.Validate(string(entityType), in.Payload)
	if err != nil {
		return rs, nil, apperrors.NewInternalError(err)
	}
	if len(violations) > 0 {
		rs.Errors = violations
		return rs, nil, nil
	}

	match, err := s.matcher.Match(ctx, models.WithCase(in.Payload, batch.CaseOpeningNumber), batch.TargetDistrict, entityType)
	if err != nil {
		return rs, nil, err
	}

	rec := &models.StagingRecord{
		ID:                s.newID(),
		BatchID:           batch.ID,
		EntityType:        entityType,
		CaseOpeningNumber: batch.CaseOpeningNumber,
		TargetDistrict:    batch.TargetDistrict,
		Payload:           in.Payload,
		Status:            models.Pending{},
		MatchHint:         match,
		CreatedAt:         batch.CreatedAt,
	}
	rs.Accepted = true
	rs.StagingID = rec.ID
	rs.Match = match
	return rs, rec, nil
}

// stageFile resolves the owner of a file: the record at RecordIndex, else
// the accepted applicant with the same identity number, else the accepted
// parcel with the same lot identifier. A file nobody owns is rejected.
func (s *Service) stageFile(index int, in FileInput, batch *models.ImportBatch, staged map[int]*models.StagingRecord) (FileSummary, *models.StagingFile) {
	fs := FileSummary{Index: index, FileName: in.FileName}
	if strings.TrimSpace(in.FileName) == "" || strings.TrimSpace(in.StorageKey) == "" {
		fs.Reason = "fileName and storageKey are required"
		return fs, nil
	}

	identity := models.NormalizeIdentityNumber(in.IdentityNumber)
	lot := strings.TrimSpace(in.LotIdentifier)

	var owner *models.StagingRecord
	switch {
	case in.RecordIndex != nil:
		owner = staged[*in.RecordIndex]
		if owner == nil {
			fs.Reason = fmt.Sprintf("record %d was not accepted", *in.RecordIndex)
			return fs, nil
		}
	case identity != "":
		owner = findStaged(staged, models.EntityApplicant, identity)
	case lot != "":
		owner = findStaged(staged, models.EntityParcel, lot)
	}
	if owner == nil {
		fs.Reason = "no record of this batch owns the file"
		return fs, nil
	}

	fileOwner, err := models.NewFileOwner(owner.EntityType, models.StagingRef(owner.ID))
	if err != nil {
		fs.Reason = err.Error()
		return fs, nil
	}
	if owner.EntityType == models.EntityApplicant && identity == "" {
		identity = owner.IdentityNumber()
	}
	if owner.EntityType == models.EntityParcel && lot == "" {
		lot = owner.LotIdentifier()
	}

	f := &models.StagingFile{
		ID:                s.newID(),
		BatchID:           batch.ID,
		CaseOpeningNumber: batch.CaseOpeningNumber,
		TargetDistrict:    batch.TargetDistrict,
		IdentityNumber:    identity,
		LotIdentifier:     lot,
		Category:          strings.TrimSpace(in.Category),
		FileName:          strings.TrimSpace(in.FileName),
		StorageKey:        strings.TrimSpace(in.StorageKey),
		Owner:             fileOwner,
		CreatedAt:         batch.CreatedAt,
	}
	fs.Accepted = true
	fs.FileID = f.ID
	fs.OwnerType = owner.EntityType
	fs.OwnerID = owner.ID
	return fs, f
}

// findStaged returns the first accepted record of type t with natural key
// key, in submission order.
func findStaged(staged map[int]*models.StagingRecord, t models.EntityType, key string) *models.StagingRecord {
	var (
		best    *models.StagingRecord
		bestIdx int
	)
	for idx, rec := range staged {
		if rec.EntityType != t || rec.NaturalKey() != key {
			continue
		}
		if best == nil || idx < bestIdx {
			best, bestIdx = rec, idx
		}
	}
	return best
}

func acceptedLabel(accepted bool) string {
	if accepted {
		return "accepted"
	}
	return "rejected"
}

func typeLabel(t string) string {
	if et, err := models.ParseEntityType(t); err == nil {
		return string(et)
	}
	return "UNKNOWN"
}
