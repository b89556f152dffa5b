package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	apperrors "landreg-workers/internal/common/errors"
)

// StatusCode is the persisted status column value.
type StatusCode string

const (
	StatusPending  StatusCode = "PENDING"
	StatusArchived StatusCode = "ARCHIVED"
	StatusRejected StatusCode = "REJECTED"
)

// StagingStatus is one of Pending, Archived or Rejected. The archival and
// rejection fields only exist on their own variant, so a rejected record
// cannot carry archival data and vice versa.
type StagingStatus interface {
	Code() StatusCode
	isStagingStatus()
}

// Pending is the only non-terminal state.
type Pending struct{}

// Archived means the record was promoted into production.
type Archived struct {
	By   string
	At   time.Time
	Note string
}

// Rejected means a moderator discarded the record.
type Rejected struct {
	By     string
	At     time.Time
	Reason string
}

func (Pending) Code() StatusCode  { return StatusPending }
func (Archived) Code() StatusCode { return StatusArchived }
func (Rejected) Code() StatusCode { return StatusRejected }

func (Pending) isStagingStatus()  {}
func (Archived) isStagingStatus() {}
func (Rejected) isStagingStatus() {}

// Archive is the only way to build an Archived status.
func (Pending) Archive(by, note string, at time.Time) (Archived, error) {
	by = strings.TrimSpace(by)
	if by == "" {
		return Archived{}, apperrors.NewValidationError("archiving requires the acting moderator")
	}
	return Archived{By: by, At: at.UTC(), Note: strings.TrimSpace(note)}, nil
}

// Reject is the only way to build a Rejected status. reason must not be blank.
func (Pending) Reject(by, reason string, at time.Time) (Rejected, error) {
	by = strings.TrimSpace(by)
	if by == "" {
		return Rejected{}, apperrors.NewValidationError("rejection requires the acting moderator")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Rejected{}, apperrors.NewValidationError("rejection requires a non-empty reason")
	}
	return Rejected{By: by, At: at.UTC(), Reason: reason}, nil
}

// IsTerminal reports whether s can no longer transition.
func IsTerminal(s StagingStatus) bool {
	return s != nil && s.Code() != StatusPending
}

// DescribeStatus renders s for moderator-facing messages.
func DescribeStatus(s StagingStatus) string {
	switch st := s.(type) {
	case Archived:
		return fmt.Sprintf("ARCHIVED by %s at %s", st.By, st.At.Format(time.RFC3339))
	case Rejected:
		return fmt.Sprintf("REJECTED by %s at %s: %s", st.By, st.At.Format(time.RFC3339), st.Reason)
	case Pending:
		return string(StatusPending)
	default:
		return "UNKNOWN"
	}
}

// StatusColumns mirrors the status column and both triples of a staging row.
type StatusColumns struct {
	Status          string
	ArchivedAt      sql.NullTime
	ArchivedBy      sql.NullString
	ArchivedNote    sql.NullString
	RejectedAt      sql.NullTime
	RejectedBy      sql.NullString
	RejectionReason sql.NullString
}

// EncodeStatus flattens s into columns, leaving the other variant's triple NULL.
func EncodeStatus(s StagingStatus) StatusColumns {
	switch st := s.(type) {
	case Archived:
		return StatusColumns{
			Status:       string(StatusArchived),
			ArchivedAt:   sql.NullTime{Time: st.At, Valid: true},
			ArchivedBy:   sql.NullString{String: st.By, Valid: true},
			ArchivedNote: sql.NullString{String: st.Note, Valid: true},
		}
	case Rejected:
		return StatusColumns{
			Status:          string(StatusRejected),
			RejectedAt:      sql.NullTime{Time: st.At, Valid: true},
			RejectedBy:      sql.NullString{String: st.By, Valid: true},
			RejectionReason: sql.NullString{String: st.Reason, Valid: true},
		}
	default:
		return StatusColumns{Status: string(StatusPending)}
	}
}

// Decode rebuilds the status, refusing any column combination the union
// cannot represent.
func (c StatusColumns) Decode() (StagingStatus, error) {
	archivalSet := c.ArchivedAt.Valid || c.ArchivedBy.Valid || c.ArchivedNote.Valid
	rejectionSet := c.RejectedAt.Valid || c.RejectedBy.Valid || c.RejectionReason.Valid

	switch StatusCode(c.Status) {
	case StatusPending:
		if archivalSet || rejectionSet {
			return nil, apperrors.NewIntegrityViolationError("PENDING record carries archival or rejection fields")
		}
		return Pending{}, nil
	case StatusArchived:
		if rejectionSet || !c.ArchivedAt.Valid || !c.ArchivedBy.Valid || !c.ArchivedNote.Valid {
			return nil, apperrors.NewIntegrityViolationError("ARCHIVED record must carry exactly the archival fields")
		}
		return Archived{By: c.ArchivedBy.String, At: c.ArchivedAt.Time, Note: c.ArchivedNote.String}, nil
	case StatusRejected:
		if archivalSet || !c.RejectedAt.Valid || !c.RejectedBy.Valid || strings.TrimSpace(c.RejectionReason.String) == "" {
			return nil, apperrors.NewIntegrityViolationError("REJECTED record must carry exactly the rejection fields")
		}
		return Rejected{By: c.RejectedBy.String, At: c.RejectedAt.Time, Reason: c.RejectionReason.String}, nil
	default:
		return nil, apperrors.NewIntegrityViolationError(fmt.Sprintf("unknown staging status %q", c.Status))
	}
}

// StatusView is the JSON form of a status.
type StatusView struct {
	Status StatusCode `json:"status"`
	By     string     `json:"by,omitempty"`
	At     *time.Time `json:"at,omitempty"`
	Note   string     `json:"note,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

// ViewStatus converts s to its JSON form.
func ViewStatus(s StagingStatus) StatusView {
	switch st := s.(type) {
	case Archived:
		at := st.At
		return StatusView{Status: StatusArchived, By: st.By, At: &at, Note: st.Note}
	case Rejected:
		at := st.At
		return StatusView{Status: StatusRejected, By: st.By, At: &at, Reason: st.Reason}
	default:
		return StatusView{Status: StatusPending}
	}
}
