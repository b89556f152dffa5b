// Package matcher classifies staged records against the production registry.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/common/logger"
	"landreg-workers/internal/common/metrics"
	"landreg-workers/internal/models"
	"landreg-workers/internal/repository"
)

// Matcher is a pure read over the registry. It holds no state between calls,
// so concurrent callers need no synchronization.
type Matcher struct {
	reader repository.ProductionReader
	logger logger.Logger
}

func New(reader repository.ProductionReader, log logger.Logger) *Matcher {
	return &Matcher{
		reader: reader,
		logger: log.WithFields(map[string]interface{}{"component": "matcher"}),
	}
}

// Match classifies payload as NEW, MATCHED or AMBIGUOUS. Finding nothing is
// not an error; registry failures come back as transient errors.
func (m *Matcher) Match(ctx context.Context, payload map[string]interface{}, targetDistrict int, entityType models.EntityType) (*models.MatchResult, error) {
	defer metrics.ObserveSince("match", time.Now())

	var (
		candidates []models.MatchCandidate
		err        error
	)
	switch entityType {
	case models.EntityApplicant:
		candidates, err = m.applicantCandidates(ctx, payload)
	case models.EntityParcel:
		candidates, err = m.parcelCandidates(ctx, payload, targetDistrict)
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown entity type %q", entityType))
	}
	if err != nil {
		m.logger.Warn("registry lookup failed", map[string]interface{}{
			"entityType": entityType,
			"error":      err,
		})
		return nil, asTransient("match "+string(entityType), err)
	}

	result := classify(entityType, candidates, targetDistrict)
	metrics.MatchOutcomes.WithLabelValues(string(entityType), string(result.Outcome)).Inc()
	return result, nil
}

func (m *Matcher) applicantCandidates(ctx context.Context, payload map[string]interface{}) ([]models.MatchCandidate, error) {
	identity := models.NormalizeIdentityNumber(models.Identity(payload))
	if identity == "" {
		return nil, nil
	}
	return m.reader.FindApplicantsByIdentity(ctx, identity)
}

// parcelCandidates looks up by case, district and lot first and only falls
// back to the title reference when that finds nothing.
func (m *Matcher) parcelCandidates(ctx context.Context, payload map[string]interface{}, district int) ([]models.MatchCandidate, error) {
	caseNumber := models.PayloadString(payload, models.FieldCaseOpeningNumber)
	lot := models.PayloadString(payload, models.FieldLotIdentifier)

	if caseNumber != "" && lot != "" {
		found, err := m.reader.FindParcelsByLot(ctx, caseNumber, district, lot)
		if err != nil || len(found) > 0 {
			return found, err
		}
	}

	title := models.PayloadString(payload, models.FieldTitleReference)
	if title == "" {
		return nil, nil
	}
	return m.reader.FindParcelsByTitle(ctx, title)
}

func classify(entityType models.EntityType, candidates []models.MatchCandidate, targetDistrict int) *models.MatchResult {
	result := &models.MatchResult{EntityType: entityType}
	switch len(candidates) {
	case 0:
		result.Outcome = models.MatchNew
	case 1:
		id := candidates[0].ID
		result.Outcome = models.MatchMatched
		result.MatchedID = &id
		result.SameDistrict = candidates[0].District == targetDistrict
	default:
		result.Outcome = models.MatchAmbiguous
		result.Ambiguous = true
		result.Candidates = append([]models.MatchCandidate(nil), candidates...)
		sort.Slice(result.Candidates, func(i, j int) bool {
			return result.Candidates[i].ID < result.Candidates[j].ID
		})
	}
	return result
}

func asTransient(op string, err error) error {
	if std := apperrors.AsStandard(err); std.Code != apperrors.ErrCodeInternal {
		return std
	}
	return apperrors.NewTransientError(op, err)
}
