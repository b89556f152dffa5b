package ingest

import (
	"landreg-workers/internal/models"
	"landreg-workers/pkg/recordschema"
)

// Request is one submission from the field capture tool.
type Request struct {
	TargetDistrict    int           `json:"targetDistrict"`
	CaseOpeningNumber string        `json:"caseOpeningNumber"`
	SubmittedBy       string        `json:"submittedBy"`
	SubmissionKey     string        `json:"submissionKey,omitempty"`
	Records           []RecordInput `json:"records"`
	Files             []FileInput   `json:"files,omitempty"`
}

type RecordInput struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// FileInput attaches a stored document to a record of the batch, either by
// position or by natural key.
type FileInput struct {
	Category       string `json:"category"`
	FileName       string `json:"fileName"`
	StorageKey     string `json:"storageKey"`
	IdentityNumber string `json:"identityNumber,omitempty"`
	LotIdentifier  string `json:"lotIdentifier,omitempty"`
	RecordIndex    *int   `json:"recordIndex,omitempty"`
}

// Summary reports what happened to every record and file of a request.
type Summary struct {
	BatchID         string          `json:"batchId"`
	TotalRecords    int             `json:"totalRecords"`
	AcceptedRecords int             `json:"acceptedRecords"`
	RejectedRecords int             `json:"rejectedRecords"`
	Records         []RecordSummary `json:"records"`
	Files           []FileSummary   `json:"files"`
	Replayed        bool            `json:"replayed"`
}

type RecordSummary struct {
	Index     int                      `json:"index"`
	Type      string                   `json:"type"`
	Accepted  bool                     `json:"accepted"`
	StagingID string                   `json:"stagingId,omitempty"`
	Match     *models.MatchResult      `json:"match,omitempty"`
	Errors    []recordschema.Violation `json:"errors,omitempty"`
}

type FileSummary struct {
	Index     int               `json:"index"`
	FileName  string            `json:"fileName"`
	Accepted  bool              `json:"accepted"`
	FileID    string            `json:"fileId,omitempty"`
	OwnerType models.EntityType `json:"ownerType,omitempty"`
	OwnerID   string            `json:"ownerId,omitempty"`
	Reason    string            `json:"reason,omitempty"`
}
