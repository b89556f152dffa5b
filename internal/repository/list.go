package repository

import (
	"context"
	"fmt"
	"strings"

	"landreg-workers/internal/models"
)

// listBranch is one SELECT of the moderation list union.
type listBranch struct {
	entityType models.EntityType
	origin     models.Origin
	selectSQL  string
	district   string
	batch      string // condition with %s for the batch placeholder
}

var listBranches = []listBranch{
	{
		entityType: models.EntityApplicant,
		origin:     models.OriginStaging,
		selectSQL: `SELECT 'STAGING' AS origin, 'APPLICANT' AS entity_type, s.id::text AS id, s.target_district AS district,
		s.case_opening_number, COALESCE(s.payload->>'lastName', s.payload->>'name', '') AS label,
		s.identity_number AS natural_key, s.created_at
	FROM staging_applicants s WHERE s.status = 'PENDING'`,
		district: "s.target_district",
		batch:    "s.batch_id = %s::uuid",
	},
	{
		entityType: models.EntityParcel,
		origin:     models.OriginStaging,
		selectSQL: `SELECT 'STAGING', 'PARCEL', s.id::text, s.target_district,
		s.case_opening_number, COALESCE(s.payload->>'vocation', ''),
		s.lot_identifier, s.created_at
	FROM staging_parcels s WHERE s.status = 'PENDING'`,
		district: "s.target_district",
		batch:    "s.batch_id = %s::uuid",
	},
	{
		entityType: models.EntityApplicant,
		origin:     models.OriginProduction,
		selectSQL: `SELECT 'PRODUCTION', 'APPLICANT', a.id::text, a.district,
		'', a.last_name,
		a.identity_number, a.created_at
	FROM applicants a WHERE TRUE`,
		district: "a.district",
		batch:    "EXISTS (SELECT 1 FROM staging_promotions p WHERE p.entity_type = 'APPLICANT' AND p.production_id = a.id AND p.batch_id = %s::uuid)",
	},
	{
		entityType: models.EntityParcel,
		origin:     models.OriginProduction,
		selectSQL: `SELECT 'PRODUCTION', 'PARCEL', c.id::text, c.district,
		c.case_opening_number, c.vocation,
		c.lot_identifier, c.created_at
	FROM parcels c WHERE TRUE`,
		district: "c.district",
		batch:    "EXISTS (SELECT 1 FROM staging_promotions p WHERE p.entity_type = 'PARCEL' AND p.production_id = c.id AND p.batch_id = %s::uuid)",
	},
}

// buildListQuery assembles the union for f. Archived staging rows never
// appear: they are represented by the production row they became.
func buildListQuery(f models.ListFilter) (string, []interface{}) {
	f = f.Normalized()
	var args []interface{}
	districtArg, batchArg := "", ""
	if f.District > 0 {
		args = append(args, f.District)
		districtArg = fmt.Sprintf("$%d", len(args))
	}
	if f.BatchID != "" {
		args = append(args, f.BatchID)
		batchArg = fmt.Sprintf("$%d", len(args))
	}

	var parts []string
	for _, b := range listBranches {
		if f.EntityType != "" && f.EntityType != b.entityType {
			continue
		}
		sql := b.selectSQL
		if districtArg != "" {
			sql += fmt.Sprintf(" AND %s = %s", b.district, districtArg)
		}
		if batchArg != "" {
			sql += " AND " + fmt.Sprintf(b.batch, batchArg)
		}
		parts = append(parts, sql)
	}

	args = append(args, f.Limit, f.Offset)

	query := fmt.Sprintf(`SELECT origin, entity_type, id, district, case_opening_number, label, natural_key, created_at
FROM (
	%s
) AS entries
ORDER BY created_at DESC, origin, id
LIMIT $%d OFFSET $%d`, strings.Join(parts, "\n\tUNION ALL\n\t"), len(args)-1, len(args))

	return query, args
}

// List returns one page of the moderation list.
func (r *StagingRepository) List(ctx context.Context, f models.ListFilter) ([]models.ListEntry, error) {
	query, args := buildListQuery(f)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Classify("list records", err)
	}
	defer rows.Close()

	entries := []models.ListEntry{}
	for rows.Next() {
		var (
			e                  models.ListEntry
			origin, entityType string
		)
		if err := rows.Scan(&origin, &entityType, &e.ID, &e.District, &e.CaseOpeningNumber, &e.Label, &e.Key, &e.CreatedAt); err != nil {
			return nil, Classify("scan list entry", err)
		}
		e.Origin = models.Origin(origin)
		e.EntityType = models.EntityType(entityType)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("list records", err)
	}
	return entries, nil
}
