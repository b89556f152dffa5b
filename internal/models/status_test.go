package models

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	apperrors "landreg-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingTransitions(t *testing.T) {
	at := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)

	t.Run("archive records actor and note", func(t *testing.T) {
		a, err := Pending{}.Archive(" moderator-7 ", "checked against title", at)
		require.NoError(t, err)
		assert.Equal(t, "moderator-7", a.By)
		assert.Equal(t, "checked against title", a.Note)
		assert.Equal(t, at, a.At)
		assert.Equal(t, StatusArchived, a.Code())
	})

	t.Run("archive without actor", func(t *testing.T) {
		_, err := Pending{}.Archive("  ", "", at)
		assert.True(t, errors.Is(err, apperrors.ErrValidation))
	})

	t.Run("reject requires reason", func(t *testing.T) {
		_, err := Pending{}.Reject("moderator-7", "   ", at)
		assert.True(t, errors.Is(err, apperrors.ErrValidation))
	})

	t.Run("reject records reason", func(t *testing.T) {
		r, err := Pending{}.Reject("moderator-7", "duplicate capture", at)
		require.NoError(t, err)
		assert.Equal(t, "duplicate capture", r.Reason)
		assert.True(t, IsTerminal(r))
	})
}

// Every status survives an encode/decode round trip, and the encoded
// columns hold exactly the triple of their own variant.
func TestStatusColumns_Invariant(t *testing.T) {
	at := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	statuses := []StagingStatus{
		Pending{},
		Archived{By: "m1", At: at, Note: ""},
		Rejected{By: "m2", At: at, Reason: "blurred scan"},
	}

	for _, s := range statuses {
		t.Run(string(s.Code()), func(t *testing.T) {
			cols := EncodeStatus(s)
			archival := cols.ArchivedAt.Valid || cols.ArchivedBy.Valid || cols.ArchivedNote.Valid
			rejection := cols.RejectedAt.Valid || cols.RejectedBy.Valid || cols.RejectionReason.Valid

			switch s.Code() {
			case StatusPending:
				assert.False(t, archival)
				assert.False(t, rejection)
			case StatusArchived:
				assert.True(t, cols.ArchivedAt.Valid && cols.ArchivedBy.Valid && cols.ArchivedNote.Valid)
				assert.False(t, rejection)
			case StatusRejected:
				assert.True(t, cols.RejectedAt.Valid && cols.RejectedBy.Valid && cols.RejectionReason.Valid)
				assert.False(t, archival)
			}

			decoded, err := cols.Decode()
			require.NoError(t, err)
			assert.Equal(t, s, decoded)
		})
	}
}

func TestStatusColumns_DecodeRejectsMixedColumns(t *testing.T) {
	now := sql.NullTime{Time: time.Now(), Valid: true}
	by := sql.NullString{String: "m1", Valid: true}

	tests := []struct {
		name string
		cols StatusColumns
	}{
		{"pending with archival", StatusColumns{Status: "PENDING", ArchivedAt: now}},
		{"archived with rejection", StatusColumns{Status: "ARCHIVED", ArchivedAt: now, ArchivedBy: by, ArchivedNote: by, RejectedBy: by}},
		{"archived missing actor", StatusColumns{Status: "ARCHIVED", ArchivedAt: now, ArchivedNote: by}},
		{"rejected with blank reason", StatusColumns{Status: "REJECTED", RejectedAt: now, RejectedBy: by, RejectionReason: sql.NullString{String: " ", Valid: true}}},
		{"unknown status", StatusColumns{Status: "DELETED"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cols.Decode()
			assert.True(t, errors.Is(err, apperrors.ErrIntegrity), "got %v", err)
		})
	}
}

func TestDescribeStatus(t *testing.T) {
	at := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "PENDING", DescribeStatus(Pending{}))
	assert.Equal(t, "REJECTED by m2 at 2024-05-02T09:30:00Z: blurred scan",
		DescribeStatus(Rejected{By: "m2", At: at, Reason: "blurred scan"}))
}
