package repository

import (
	"context"
	"database/sql"

	"landreg-workers/internal/models"
)

// ProductionReader is the read-only view of the authoritative registry the
// matcher works against. Every lookup returns candidates ordered by id.
type ProductionReader interface {
	FindApplicantsByIdentity(ctx context.Context, identityNumber string) ([]models.MatchCandidate, error)
	FindParcelsByLot(ctx context.Context, caseOpeningNumber string, district int, lotIdentifier string) ([]models.MatchCandidate, error)
	FindParcelsByTitle(ctx context.Context, titleReference string) ([]models.MatchCandidate, error)
}

// ProductionRepository reads the applicants and parcels tables.
type ProductionRepository struct {
	db *sql.DB
}

func NewProductionRepository(db *sql.DB) *ProductionRepository {
	return &ProductionRepository{db: db}
}

const (
	queryApplicantsByIdentity = `SELECT id, district FROM applicants WHERE identity_number = $1 ORDER BY id`
	queryParcelsByLot         = `SELECT id, district FROM parcels WHERE case_opening_number = $1 AND district = $2 AND lot_identifier = $3 ORDER BY id`
	queryParcelsByTitle       = `SELECT id, district FROM parcels WHERE title_reference = $1 ORDER BY id`
)

func (r *ProductionRepository) FindApplicantsByIdentity(ctx context.Context, identityNumber string) ([]models.MatchCandidate, error) {
	return r.candidates(ctx, "find applicants by identity", queryApplicantsByIdentity, identityNumber)
}

func (r *ProductionRepository) FindParcelsByLot(ctx context.Context, caseOpeningNumber string, district int, lotIdentifier string) ([]models.MatchCandidate, error) {
	return r.candidates(ctx, "find parcels by lot", queryParcelsByLot, caseOpeningNumber, district, lotIdentifier)
}

func (r *ProductionRepository) FindParcelsByTitle(ctx context.Context, titleReference string) ([]models.MatchCandidate, error) {
	return r.candidates(ctx, "find parcels by title", queryParcelsByTitle, titleReference)
}

func (r *ProductionRepository) candidates(ctx context.Context, op, query string, args ...interface{}) ([]models.MatchCandidate, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Classify(op, err)
	}
	defer rows.Close()

	var out []models.MatchCandidate
	for rows.Next() {
		var c models.MatchCandidate
		if err := rows.Scan(&c.ID, &c.District); err != nil {
			return nil, Classify(op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify(op, err)
	}
	return out, nil
}
