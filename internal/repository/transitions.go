package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"landreg-workers/internal/common/database"
	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/models"
)

// PromotionWrite is the complete write set of one promotion. Values maps
// production columns to already validated values.
type PromotionWrite struct {
	EntityType        models.EntityType
	StagingID         string
	BatchID           string
	CaseOpeningNumber string
	District          int
	NaturalKey        string
	Archived          models.Archived
	Decision          models.Decision
	Values            map[string]interface{}
}

// PromotionOutcome is what a committed promotion produced.
type PromotionOutcome struct {
	Ref           *models.ProductionEntityRef
	FilesRelinked int64
}

// Reject moves a PENDING record to REJECTED with a single conditional update.
func (r *StagingRepository) Reject(ctx context.Context, t models.EntityType, id string, rejected models.Rejected) error {
	query := fmt.Sprintf(`UPDATE %s
	SET status = 'REJECTED', rejected_at = $2, rejected_by = $3, rejection_reason = $4
	WHERE id = $1 AND status = 'PENDING'`, t.StagingTable())

	res, err := r.db.ExecContext(ctx, query, id, rejected.At, rejected.By, rejected.Reason)
	if err != nil {
		return Classify("reject staging record", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Classify("reject staging record", err)
	}
	if affected == 0 {
		return lostTransition(ctx, r.db, t, id)
	}
	return nil
}

// Promote archives the staging row, writes the production entity, re-links
// the record's files and records the trail, all in one transaction. Losing
// the PENDING compare-and-swap rolls everything back.
func (r *StagingRepository) Promote(ctx context.Context, w PromotionWrite) (*PromotionOutcome, error) {
	out := &PromotionOutcome{}

	err := database.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := archive(ctx, tx, w); err != nil {
			return err
		}

		var (
			ref *models.ProductionEntityRef
			err error
		)
		switch w.Decision.Kind {
		case models.DecisionCreate:
			ref, err = insertEntity(ctx, tx, w)
		case models.DecisionMerge:
			ref, err = mergeEntity(ctx, tx, w)
		default:
			err = apperrors.NewValidationError(fmt.Sprintf("unknown decision %q", w.Decision.Kind))
		}
		if err != nil {
			return err
		}

		relinked, err := relinkFiles(ctx, tx, w, ref.ID)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, insertPromotion,
			w.StagingID, string(w.EntityType), w.BatchID, ref.ID, ref.District,
			string(w.Decision.Kind), w.Archived.By, w.Archived.At,
		); err != nil {
			return Classify("insert promotion trail", err)
		}

		out.Ref = ref
		out.FilesRelinked = relinked
		return nil
	})
	if err != nil {
		return nil, Classify("promote staging record", err)
	}
	return out, nil
}

const insertPromotion = `INSERT INTO staging_promotions
	(staging_id, entity_type, batch_id, production_id, district, decision, promoted_by, promoted_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func archive(ctx context.Context, tx *sql.Tx, w PromotionWrite) error {
	query := fmt.Sprintf(`UPDATE %s
	SET status = 'ARCHIVED', archived_at = $2, archived_by = $3, archived_note = $4
	WHERE id = $1 AND status = 'PENDING'`, w.EntityType.StagingTable())

	res, err := tx.ExecContext(ctx, query, w.StagingID, w.Archived.At, w.Archived.By, w.Archived.Note)
	if err != nil {
		return Classify("archive staging record", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Classify("archive staging record", err)
	}
	if affected == 0 {
		return lostTransition(ctx, tx, w.EntityType, w.StagingID)
	}
	return nil
}

func insertEntity(ctx context.Context, tx *sql.Tx, w PromotionWrite) (*models.ProductionEntityRef, error) {
	columns := []string{"district"}
	args := []interface{}{w.District}
	if w.EntityType == models.EntityParcel {
		columns = append(columns, "case_opening_number")
		args = append(args, w.CaseOpeningNumber)
	}
	cols, err := sortedColumns(w.EntityType, w.Values)
	if err != nil {
		return nil, err
	}
	for _, col := range cols {
		columns = append(columns, col)
		args = append(args, w.Values[col])
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING id`,
		w.EntityType.ProductionTable(), strings.Join(columns, ", "), placeholders(1, len(columns)))

	var id int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return nil, Classify(fmt.Sprintf("insert %s", strings.ToLower(string(w.EntityType))), err)
	}
	return &models.ProductionEntityRef{EntityType: w.EntityType, ID: id, District: w.District, Created: true}, nil
}

func mergeEntity(ctx context.Context, tx *sql.Tx, w PromotionWrite) (*models.ProductionEntityRef, error) {
	table := w.EntityType.ProductionTable()
	cols, err := sortedColumns(w.EntityType, w.Values)
	if err != nil {
		return nil, err
	}

	var query string
	args := []interface{}{w.Decision.MatchedID}
	if len(cols) == 0 {
		query = fmt.Sprintf(`SELECT district FROM %s WHERE id = $1 FOR UPDATE`, table)
	} else {
		sets := make([]string, 0, len(cols)+1)
		for i, col := range cols {
			sets = append(sets, fmt.Sprintf("%s = $%d", col, i+2))
			args = append(args, w.Values[col])
		}
		sets = append(sets, "updated_at = now()")
		query = fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1 RETURNING district`, table, strings.Join(sets, ", "))
	}

	var district int
	err = tx.QueryRowContext(ctx, query, args...).Scan(&district)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewEntityNotFoundError(string(w.EntityType), w.Decision.MatchedID)
	}
	if err != nil {
		return nil, Classify(fmt.Sprintf("merge %s", strings.ToLower(string(w.EntityType))), err)
	}
	return &models.ProductionEntityRef{EntityType: w.EntityType, ID: w.Decision.MatchedID, District: district}, nil
}

// relinkFiles moves every file still owned in staging by this record, or by
// its case/district/natural key, onto the production entity.
func relinkFiles(ctx context.Context, tx *sql.Tx, w PromotionWrite, productionID int64) (int64, error) {
	query := fmt.Sprintf(`UPDATE staging_files
	SET owner_origin = 'PRODUCTION', owner_ref = $1
	WHERE owner_kind = $2 AND owner_origin = 'STAGING'
	  AND (owner_ref = $3 OR (case_opening_number = $4 AND target_district = $5 AND %s = $6 AND $6 <> ''))`,
		keyColumn(w.EntityType))

	res, err := tx.ExecContext(ctx, query,
		models.ProductionRef(productionID).ID, string(w.EntityType), w.StagingID,
		w.CaseOpeningNumber, w.District, w.NaturalKey)
	if err != nil {
		return 0, Classify("relink staging files", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, Classify("relink staging files", err)
	}
	return n, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// lostTransition explains a conditional update that touched no row.
func lostTransition(ctx context.Context, q queryRower, t models.EntityType, id string) error {
	var status string
	err := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT status FROM %s WHERE id = $1`, t.StagingTable()), id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewRecordNotFoundError(string(t), id)
	}
	if err != nil {
		return Classify("read staging status", err)
	}
	return apperrors.NewAlreadyProcessedError(id, status)
}

// sortedColumns returns the columns of values in a stable order, refusing any
// column outside the production whitelist for t.
func sortedColumns(t models.EntityType, values map[string]interface{}) ([]string, error) {
	allowed := make(map[string]bool)
	for _, spec := range models.FieldsFor(t) {
		allowed[spec.Column] = true
	}

	cols := make([]string, 0, len(values))
	for col := range values {
		if !allowed[col] {
			return nil, apperrors.NewValidationError(fmt.Sprintf("column %q is not writable on %s", col, t.ProductionTable()))
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols, nil
}

func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}
