package enrichrecord

import "landreg-workers/internal/enrichment"

// Input selects a record by stagingId, or by caseOpeningNumber and district
// when stagingId is empty.
type Input struct {
	EntityType        string `json:"entityType"`
	StagingID         string `json:"stagingId,omitempty"`
	CaseOpeningNumber string `json:"caseOpeningNumber,omitempty"`
	District          int    `json:"district,omitempty"`
}

type Output struct {
	Prefill   *enrichment.PrefillView `json:"prefill"`
	MatchedID *int64                  `json:"matchedId"`
	Ambiguous bool                    `json:"ambiguous"`
}
