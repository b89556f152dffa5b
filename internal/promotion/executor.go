// Package promotion moves staged records into production or rejects them.
package promotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/common/logger"
	"landreg-workers/internal/common/metrics"
	"landreg-workers/internal/common/validation"
	"landreg-workers/internal/models"
	"landreg-workers/internal/notify"
	"landreg-workers/internal/repository"
)

// Store is the staging storage the executor writes through.
type Store interface {
	GetRecord(ctx context.Context, t models.EntityType, id string) (*models.StagingRecord, error)
	GetPromotion(ctx context.Context, stagingID string) (*models.PromotionTrail, error)
	Promote(ctx context.Context, w repository.PromotionWrite) (*repository.PromotionOutcome, error)
	Reject(ctx context.Context, t models.EntityType, id string, rejected models.Rejected) error
}

// Matcher re-classifies a record right before it is created.
type Matcher interface {
	Match(ctx context.Context, payload map[string]interface{}, targetDistrict int, entityType models.EntityType) (*models.MatchResult, error)
}

type Config struct {
	IdentityNumberDigits int
}

type Dependencies struct {
	Store     Store
	Matcher   Matcher
	Guard     DistrictGuard
	Publisher notify.Publisher
	Logger    logger.Logger
	Now       func() time.Time
}

type Executor struct {
	store     Store
	matcher   Matcher
	guard     DistrictGuard
	publisher notify.Publisher
	rules     validation.FieldRules
	logger    logger.Logger
	now       func() time.Time
}

func NewExecutor(deps Dependencies, config Config) *Executor {
	e := &Executor{
		store:     deps.Store,
		matcher:   deps.Matcher,
		guard:     deps.Guard,
		publisher: deps.Publisher,
		rules:     validation.NewFieldRules(config.IdentityNumberDigits),
		logger:    deps.Logger.WithFields(map[string]interface{}{"component": "promotion"}),
		now:       deps.Now,
	}
	if e.guard == nil {
		e.guard = ClaimsGuard{}
	}
	if e.publisher == nil {
		e.publisher = notify.NoopPublisher{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Promote writes the staged record into production according to decision
// and archives it. Replaying a promotion that already committed returns the
// same reference.
func (e *Executor) Promote(ctx context.Context, entityType models.EntityType, stagingID string, decision models.Decision, actor models.Actor) (ref *models.ProductionEntityRef, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveSince("promote", start)
		metrics.Promotions.WithLabelValues(string(entityType), string(decision.Kind), metrics.Result(string(apperrors.CodeOf(err)))).Inc()
		e.logOutcome("promote", entityType, stagingID, err)
	}()

	if !entityType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown entity type %q", entityType))
	}

	rec, err := e.store.GetRecord(ctx, entityType, stagingID)
	if err != nil {
		return nil, err
	}
	if !e.guard.MayActOn(actor, rec.TargetDistrict) {
		return nil, apperrors.NewDistrictForbiddenError(actor.Identity, rec.TargetDistrict)
	}
	if _, pending := rec.Status.(models.Pending); !pending {
		return e.replay(ctx, rec)
	}

	archived, err := models.Pending{}.Archive(actor.Identity, decision.Note, e.now())
	if err != nil {
		return nil, err
	}

	var out *repository.PromotionOutcome
	values, err := e.prepare(ctx, rec, decision)
	if err == nil {
		out, err = e.store.Promote(ctx, repository.PromotionWrite{
			EntityType:        entityType,
			StagingID:         rec.ID,
			BatchID:           rec.BatchID,
			CaseOpeningNumber: rec.CaseOpeningNumber,
			District:          rec.TargetDistrict,
			NaturalKey:        rec.NaturalKey(),
			Archived:          archived,
			Decision:          decision,
			Values:            values,
		})
	}
	if errors.Is(err, apperrors.ErrAlreadyProcessed) || errors.Is(err, apperrors.ErrDuplicateEntity) {
		// a concurrent promotion of this same record may have committed first
		if latest, rerr := e.store.GetRecord(ctx, entityType, stagingID); rerr == nil && models.IsTerminal(latest.Status) {
			return e.replay(ctx, latest)
		}
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("staging record promoted", map[string]interface{}{
		"entityType":    entityType,
		"stagingId":     rec.ID,
		"productionId":  out.Ref.ID,
		"decision":      decision.Kind,
		"filesRelinked": out.FilesRelinked,
		"actor":         actor.Identity,
	})
	notify.Deliver(ctx, e.publisher, e.logger, notify.Event{
		Type:         notify.EventRecordPromoted,
		EntityType:   entityType,
		StagingID:    rec.ID,
		BatchID:      rec.BatchID,
		District:     out.Ref.District,
		ProductionID: out.Ref.ID,
		Actor:        actor.Identity,
		OccurredAt:   archived.At,
		Detail:       map[string]interface{}{"decision": string(decision.Kind), "filesRelinked": out.FilesRelinked},
	})
	return out.Ref, nil
}

// prepare validates the payload for decision and returns the production
// column values to write.
func (e *Executor) prepare(ctx context.Context, rec *models.StagingRecord, decision models.Decision) (map[string]interface{}, error) {
	switch decision.Kind {
	case models.DecisionCreate:
		if err := e.rules.ValidateForCreate(rec.EntityType, rec.Payload, e.now()).Err(); err != nil {
			return nil, err
		}
		match, err := e.matcher.Match(ctx, rec.MatchPayload(), rec.TargetDistrict, rec.EntityType)
		if err != nil {
			return nil, err
		}
		switch match.Outcome {
		case models.MatchMatched:
			return nil, apperrors.NewDuplicateEntityError(
				fmt.Sprintf("%s already exists as production id %d; merge instead", strings.ToLower(string(rec.EntityType)), *match.MatchedID)).
				WithMetadata("matchedId", *match.MatchedID)
		case models.MatchAmbiguous:
			return nil, apperrors.NewAmbiguousMatchError(
				fmt.Sprintf("%d production candidates; merge into one explicitly", len(match.Candidates)), match.CandidateIDs())
		}
		return e.columnValues(rec, nil)

	case models.DecisionMerge:
		if decision.MatchedID <= 0 {
			return nil, apperrors.NewValidationError("merge requires the production id to merge into")
		}
		keys := decision.Fields
		if len(keys) == 0 {
			keys = nil
		}
		if err := e.rules.ValidateFields(rec.EntityType, rec.Payload, keys, e.now()).Err(); err != nil {
			return nil, err
		}
		return e.columnValues(rec, keys)

	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown decision %q", decision.Kind))
	}
}

func (e *Executor) columnValues(rec *models.StagingRecord, keys []string) (map[string]interface{}, error) {
	values, err := e.rules.ColumnValues(rec.EntityType, rec.Payload, keys)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	return values, nil
}

// replay answers a promotion of a record that already left PENDING.
func (e *Executor) replay(ctx context.Context, rec *models.StagingRecord) (*models.ProductionEntityRef, error) {
	if _, archived := rec.Status.(models.Archived); archived {
		trail, err := e.store.GetPromotion(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		if trail != nil {
			e.logger.Info("promotion replayed", map[string]interface{}{
				"stagingId":    rec.ID,
				"productionId": trail.ProductionID,
			})
			return trail.Ref(), nil
		}
	}
	return nil, apperrors.NewAlreadyProcessedError(rec.ID, models.DescribeStatus(rec.Status)).
		WithMetadata("currentStatus", string(rec.Status.Code()))
}

// Reject moves a PENDING record to REJECTED. reason must not be blank.
func (e *Executor) Reject(ctx context.Context, entityType models.EntityType, stagingID string, actor models.Actor, reason string) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveSince("reject", start)
		metrics.Rejections.WithLabelValues(string(entityType), metrics.Result(string(apperrors.CodeOf(err)))).Inc()
		e.logOutcome("reject", entityType, stagingID, err)
	}()

	if !entityType.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown entity type %q", entityType))
	}
	rejected, err := models.Pending{}.Reject(actor.Identity, reason, e.now())
	if err != nil {
		return err
	}

	rec, err := e.store.GetRecord(ctx, entityType, stagingID)
	if err != nil {
		return err
	}
	if !e.guard.MayActOn(actor, rec.TargetDistrict) {
		return apperrors.NewDistrictForbiddenError(actor.Identity, rec.TargetDistrict)
	}
	if models.IsTerminal(rec.Status) {
		return apperrors.NewAlreadyProcessedError(rec.ID, models.DescribeStatus(rec.Status)).
			WithMetadata("currentStatus", string(rec.Status.Code()))
	}

	if err := e.store.Reject(ctx, entityType, stagingID, rejected); err != nil {
		return err
	}

	e.logger.Info("staging record rejected", map[string]interface{}{
		"entityType": entityType,
		"stagingId":  stagingID,
		"actor":      actor.Identity,
	})
	notify.Deliver(ctx, e.publisher, e.logger, notify.Event{
		Type:       notify.EventRecordRejected,
		EntityType: entityType,
		StagingID:  rec.ID,
		BatchID:    rec.BatchID,
		District:   rec.TargetDistrict,
		Actor:      actor.Identity,
		OccurredAt: rejected.At,
		Detail:     map[string]interface{}{"reason": rejected.Reason},
	})
	return nil
}

func (e *Executor) logOutcome(op string, entityType models.EntityType, stagingID string, err error) {
	if err == nil {
		return
	}
	fields := map[string]interface{}{
		"operation":  op,
		"entityType": entityType,
		"stagingId":  stagingID,
		"code":       apperrors.CodeOf(err),
		"error":      err,
	}
	if errors.Is(err, apperrors.ErrIntegrity) {
		e.logger.Error("storage integrity violation", fields)
		return
	}
	e.logger.Warn(op+" refused", fields)
}
