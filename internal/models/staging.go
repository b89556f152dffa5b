package models

import "time"

// ImportBatch groups the records and files received in one ingest call.
type ImportBatch struct {
	ID                string    `json:"id"`
	TargetDistrict    int       `json:"targetDistrict"`
	CaseOpeningNumber string    `json:"caseOpeningNumber"`
	SubmittedBy       string    `json:"submittedBy"`
	SubmissionKey     string    `json:"submissionKey,omitempty"`
	TotalRecords      int       `json:"totalRecords"`
	AcceptedRecords   int       `json:"acceptedRecords"`
	CreatedAt         time.Time `json:"createdAt"`
}

// StagingRecord is a provisional applicant or parcel awaiting moderation.
type StagingRecord struct {
	ID                string
	BatchID           string
	EntityType        EntityType
	CaseOpeningNumber string
	TargetDistrict    int
	Payload           map[string]interface{}
	Status            StagingStatus
	MatchHint         *MatchResult
	CreatedAt         time.Time
}

// IdentityNumber is the normalized applicant identity number, or "" for parcels.
func (r *StagingRecord) IdentityNumber() string {
	if r.EntityType != EntityApplicant {
		return ""
	}
	return NormalizeIdentityNumber(Identity(r.Payload))
}

// LotIdentifier is the parcel lot identifier, or "" for applicants.
func (r *StagingRecord) LotIdentifier() string {
	if r.EntityType != EntityParcel {
		return ""
	}
	return PayloadString(r.Payload, FieldLotIdentifier)
}

// NaturalKey is the identity number of an applicant or the lot identifier
// of a parcel.
func (r *StagingRecord) NaturalKey() string {
	if r.EntityType == EntityParcel {
		return r.LotIdentifier()
	}
	return r.IdentityNumber()
}

// MatchPayload is the payload the matcher sees: the record payload plus the
// case-opening number the record was filed under.
func (r *StagingRecord) MatchPayload() map[string]interface{} {
	return WithCase(r.Payload, r.CaseOpeningNumber)
}

// WithCase copies payload and sets caseOpeningNumber when it is absent.
func WithCase(payload map[string]interface{}, caseOpeningNumber string) map[string]interface{} {
	out := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	if PayloadString(out, FieldCaseOpeningNumber) == "" && caseOpeningNumber != "" {
		out[FieldCaseOpeningNumber] = caseOpeningNumber
	}
	return out
}

// StagingRecordView is the JSON form of a StagingRecord.
type StagingRecordView struct {
	ID                string                 `json:"id"`
	BatchID           string                 `json:"batchId"`
	EntityType        EntityType             `json:"entityType"`
	CaseOpeningNumber string                 `json:"caseOpeningNumber"`
	TargetDistrict    int                    `json:"targetDistrict"`
	Payload           map[string]interface{} `json:"payload"`
	Status            StatusView             `json:"status"`
	CreatedAt         time.Time              `json:"createdAt"`
}

func (r *StagingRecord) View() StagingRecordView {
	return StagingRecordView{
		ID:                r.ID,
		BatchID:           r.BatchID,
		EntityType:        r.EntityType,
		CaseOpeningNumber: r.CaseOpeningNumber,
		TargetDistrict:    r.TargetDistrict,
		Payload:           r.Payload,
		Status:            ViewStatus(r.Status),
		CreatedAt:         r.CreatedAt,
	}
}
