package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"landreg-workers/internal/common/database"
	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/models"

	"github.com/google/uuid"
)

// StagingRepository owns the staging tables, the file attachments and the
// promotion trail.
type StagingRepository struct {
	db *sql.DB
}

func NewStagingRepository(db *sql.DB) *StagingRepository {
	return &StagingRepository{db: db}
}

// BatchWrite is everything one ingest call persists.
type BatchWrite struct {
	Batch   models.ImportBatch
	Records []models.StagingRecord
	Files   []models.StagingFile
}

const recordColumns = `id, batch_id, case_opening_number, target_district, payload, match_hint,
	status, archived_at, archived_by, archived_note, rejected_at, rejected_by, rejection_reason, created_at`

const fileColumns = `id, batch_id, case_opening_number, target_district, identity_number, lot_identifier,
	category, file_name, storage_key, owner_kind, owner_origin, owner_ref, created_at`

const insertBatch = `INSERT INTO import_batches
	(id, target_district, case_opening_number, submitted_by, submission_key, total_records, accepted_records, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const insertFile = `INSERT INTO staging_files (` + fileColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// keyColumn is the natural key column stored alongside each staging row.
func keyColumn(t models.EntityType) string {
	if t == models.EntityParcel {
		return "lot_identifier"
	}
	return "identity_number"
}

// CreateBatch writes the batch, its accepted records (all PENDING) and its
// files in one transaction.
func (r *StagingRepository) CreateBatch(ctx context.Context, w BatchWrite) error {
	err := database.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		var submissionKey sql.NullString
		if w.Batch.SubmissionKey != "" {
			submissionKey = sql.NullString{String: w.Batch.SubmissionKey, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, insertBatch,
			w.Batch.ID, w.Batch.TargetDistrict, w.Batch.CaseOpeningNumber, w.Batch.SubmittedBy,
			submissionKey, w.Batch.TotalRecords, w.Batch.AcceptedRecords, w.Batch.CreatedAt,
		); err != nil {
			return Classify("insert import batch", err)
		}

		for i := range w.Records {
			if err := insertRecord(ctx, tx, &w.Records[i]); err != nil {
				return err
			}
		}

		for _, f := range w.Files {
			if f.Owner == nil {
				return apperrors.NewIntegrityViolationError(fmt.Sprintf("file %s has no owner", f.ID))
			}
			ref := f.Owner.Ref()
			if _, err := tx.ExecContext(ctx, insertFile,
				f.ID, f.BatchID, f.CaseOpeningNumber, f.TargetDistrict, f.IdentityNumber, f.LotIdentifier,
				f.Category, f.FileName, f.StorageKey, string(f.Owner.Kind()), string(ref.Origin), ref.ID, f.CreatedAt,
			); err != nil {
				return Classify("insert staging file", err)
			}
		}
		return nil
	})
	return Classify("create import batch", err)
}

func insertRecord(ctx context.Context, tx *sql.Tx, rec *models.StagingRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("record %s payload: %v", rec.ID, err))
	}

	// jsonb goes over the wire as text; pq would send []byte as bytea
	var hint sql.NullString
	if rec.MatchHint != nil {
		b, err := json.Marshal(rec.MatchHint)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		hint = sql.NullString{String: string(b), Valid: true}
	}

	query := fmt.Sprintf(`INSERT INTO %s
	(id, batch_id, case_opening_number, target_district, %s, payload, match_hint, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, rec.EntityType.StagingTable(), keyColumn(rec.EntityType))

	if _, err := tx.ExecContext(ctx, query,
		rec.ID, rec.BatchID, rec.CaseOpeningNumber, rec.TargetDistrict, rec.NaturalKey(),
		string(payload), hint, string(models.StatusPending), rec.CreatedAt,
	); err != nil {
		return Classify("insert staging record", err)
	}
	return nil
}

// GetRecord loads one staging record. A malformed or unknown id is NotFound.
func (r *StagingRepository) GetRecord(ctx context.Context, t models.EntityType, id string) (*models.StagingRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewRecordNotFoundError(string(t), id)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, recordColumns, t.StagingTable())
	rec, err := scanRecord(t, r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewRecordNotFoundError(string(t), id)
	}
	if err != nil {
		return nil, Classify("get staging record", err)
	}
	return rec, nil
}

// LatestPendingByCase returns the newest PENDING record of type t filed under
// the case in district.
func (r *StagingRepository) LatestPendingByCase(ctx context.Context, t models.EntityType, caseOpeningNumber string, district int) (*models.StagingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s
	WHERE case_opening_number = $1 AND target_district = $2 AND status = 'PENDING'
	ORDER BY created_at DESC, id DESC LIMIT 1`, recordColumns, t.StagingTable())

	rec, err := scanRecord(t, r.db.QueryRowContext(ctx, query, caseOpeningNumber, district))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewRecordNotFoundError(string(t), fmt.Sprintf("case %s district %d", caseOpeningNumber, district))
	}
	if err != nil {
		return nil, Classify("get pending record by case", err)
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(t models.EntityType, row rowScanner) (*models.StagingRecord, error) {
	var (
		rec     models.StagingRecord
		payload []byte
		hint    []byte
		cols    models.StatusColumns
	)
	if err := row.Scan(
		&rec.ID, &rec.BatchID, &rec.CaseOpeningNumber, &rec.TargetDistrict, &payload, &hint,
		&cols.Status, &cols.ArchivedAt, &cols.ArchivedBy, &cols.ArchivedNote,
		&cols.RejectedAt, &cols.RejectedBy, &cols.RejectionReason, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}

	rec.EntityType = t
	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return nil, apperrors.NewIntegrityViolationError(fmt.Sprintf("staging record %s payload: %v", rec.ID, err))
	}
	if len(hint) > 0 {
		var m models.MatchResult
		// a hint that no longer decodes is only a hint; the match is recomputed anyway
		if err := json.Unmarshal(hint, &m); err == nil {
			rec.MatchHint = &m
		}
	}

	status, err := cols.Decode()
	if err != nil {
		return nil, err
	}
	rec.Status = status
	return &rec, nil
}

// FilesForRecord returns the files attached to rec: those it owns directly and
// those filed under the same case, district and natural key.
func (r *StagingRepository) FilesForRecord(ctx context.Context, rec *models.StagingRecord) ([]models.StagingFile, error) {
	query := fmt.Sprintf(`SELECT %s FROM staging_files
	WHERE owner_kind = $1
	  AND (owner_ref = $2 OR (case_opening_number = $3 AND target_district = $4 AND %s = $5 AND $5 <> ''))
	ORDER BY created_at, id`, fileColumns, keyColumn(rec.EntityType))

	rows, err := r.db.QueryContext(ctx, query,
		string(rec.EntityType), rec.ID, rec.CaseOpeningNumber, rec.TargetDistrict, rec.NaturalKey())
	if err != nil {
		return nil, Classify("list staging files", err)
	}
	defer rows.Close()

	var files []models.StagingFile
	for rows.Next() {
		var (
			f                      models.StagingFile
			kind, origin, ownerRef string
		)
		if err := rows.Scan(
			&f.ID, &f.BatchID, &f.CaseOpeningNumber, &f.TargetDistrict, &f.IdentityNumber, &f.LotIdentifier,
			&f.Category, &f.FileName, &f.StorageKey, &kind, &origin, &ownerRef, &f.CreatedAt,
		); err != nil {
			return nil, Classify("scan staging file", err)
		}
		owner, err := models.DecodeFileOwner(kind, origin, ownerRef)
		if err != nil {
			return nil, err
		}
		f.Owner = owner
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("list staging files", err)
	}
	return files, nil
}

const selectPromotion = `SELECT staging_id, entity_type, batch_id, production_id, district, decision, promoted_by, promoted_at
	FROM staging_promotions WHERE staging_id = $1`

// GetPromotion returns the trail row of an archived record, or nil when the
// record was never promoted.
func (r *StagingRepository) GetPromotion(ctx context.Context, stagingID string) (*models.PromotionTrail, error) {
	var (
		t                    models.PromotionTrail
		entityType, decision string
	)
	err := r.db.QueryRowContext(ctx, selectPromotion, stagingID).Scan(
		&t.StagingID, &entityType, &t.BatchID, &t.ProductionID, &t.District, &decision, &t.PromotedBy, &t.PromotedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, Classify("get promotion trail", err)
	}
	t.EntityType = models.EntityType(entityType)
	t.Decision = models.DecisionKind(decision)
	return &t, nil
}
