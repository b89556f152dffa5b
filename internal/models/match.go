package models

// MatchOutcome classifies a staged record against the production registry.
type MatchOutcome string

const (
	MatchNew       MatchOutcome = "NEW"
	MatchMatched   MatchOutcome = "MATCHED"
	MatchAmbiguous MatchOutcome = "AMBIGUOUS"
)

// MatchCandidate is one production entity a staged record may correspond to.
type MatchCandidate struct {
	ID       int64 `json:"id"`
	District int   `json:"district"`
}

// MatchResult is the matcher's verdict. MatchedID is set only for MATCHED;
// AMBIGUOUS lists every candidate and never picks one.
type MatchResult struct {
	EntityType   EntityType       `json:"entityType"`
	Outcome      MatchOutcome     `json:"outcome"`
	MatchedID    *int64           `json:"matchedId"`
	SameDistrict bool             `json:"sameDistrict"`
	Ambiguous    bool             `json:"ambiguous"`
	Candidates   []MatchCandidate `json:"candidates,omitempty"`
}

// CandidateIDs lists candidate ids in order.
func (m *MatchResult) CandidateIDs() []int64 {
	ids := make([]int64, 0, len(m.Candidates))
	for _, c := range m.Candidates {
		ids = append(ids, c.ID)
	}
	return ids
}

// SameAs reports whether two results classify the record identically.
func (m *MatchResult) SameAs(other *MatchResult) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.Outcome != other.Outcome || m.SameDistrict != other.SameDistrict || len(m.Candidates) != len(other.Candidates) {
		return false
	}
	if (m.MatchedID == nil) != (other.MatchedID == nil) {
		return false
	}
	if m.MatchedID != nil && *m.MatchedID != *other.MatchedID {
		return false
	}
	for i := range m.Candidates {
		if m.Candidates[i] != other.Candidates[i] {
			return false
		}
	}
	return true
}
