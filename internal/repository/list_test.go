package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"landreg-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildListQuery_NoFilter(t *testing.T) {
	query, args := buildListQuery(models.ListFilter{})

	assert.Equal(t, 3, strings.Count(query, "UNION ALL"))
	assert.Contains(t, query, "LIMIT $1 OFFSET $2")
	assert.Equal(t, []interface{}{models.DefaultListLimit, 0}, args)
}

func TestBuildListQuery_AllFilters(t *testing.T) {
	query, args := buildListQuery(models.ListFilter{
		District:   5,
		BatchID:    batchID,
		EntityType: models.EntityParcel,
		Limit:      10,
		Offset:     20,
	})

	assert.Equal(t, 1, strings.Count(query, "UNION ALL"))
	assert.NotContains(t, query, "staging_applicants")
	assert.Contains(t, query, "s.target_district = $1")
	assert.Contains(t, query, "c.district = $1")
	assert.Contains(t, query, "s.batch_id = $2::uuid")
	assert.Contains(t, query, "p.batch_id = $2::uuid")
	assert.Contains(t, query, "LIMIT $3 OFFSET $4")
	assert.Equal(t, []interface{}{5, batchID, 10, 20}, args)
}

func TestBuildListQuery_ClampsPaging(t *testing.T) {
	_, args := buildListQuery(models.ListFilter{Limit: 10000, Offset: -3})
	assert.Equal(t, []interface{}{models.MaxListLimit, 0}, args)
}

func TestList(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStagingRepository(db)
	now := time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM staging_applicants s WHERE s.status = 'PENDING'").
		WithArgs(5, models.DefaultListLimit, 0).
		WillReturnRows(sqlmock.NewRows([]string{"origin", "entity_type", "id", "district", "case_opening_number", "label", "natural_key", "created_at"}).
			AddRow("STAGING", "APPLICANT", stagingID, 5, "CO-2024-001", "Rakoto", "123456789012", now).
			AddRow("PRODUCTION", "APPLICANT", "42", 5, "", "Rabe", "210987654321", now.Add(-time.Hour)))

	entries, err := repo.List(context.Background(), models.ListFilter{District: 5, EntityType: models.EntityApplicant})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.OriginStaging, entries[0].Origin)
	assert.Equal(t, models.OriginProduction, entries[1].Origin)
	assert.Equal(t, "42", entries[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_EmptyIsNotNil(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStagingRepository(db)

	mock.ExpectQuery("UNION ALL").
		WillReturnRows(sqlmock.NewRows([]string{"origin", "entity_type", "id", "district", "case_opening_number", "label", "natural_key", "created_at"}))

	entries, err := repo.List(context.Background(), models.ListFilter{})
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
