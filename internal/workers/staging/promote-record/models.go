package promoterecord

import "landreg-workers/internal/models"

type Input struct {
	EntityType string        `json:"entityType"`
	StagingID  string        `json:"stagingId"`
	Decision   DecisionInput `json:"decision"`
	Actor      models.Actor  `json:"actor"`
}

// DecisionInput is CREATE, or MERGE into matchedId limited to fields when
// fields is non-empty.
type DecisionInput struct {
	Kind      string   `json:"kind"`
	MatchedID int64    `json:"matchedId,omitempty"`
	Fields    []string `json:"fields,omitempty"`
	Note      string   `json:"note,omitempty"`
}

type Output struct {
	ProductionEntity *models.ProductionEntityRef `json:"productionEntity"`
	ProductionID     int64                       `json:"productionId"`
	Created          bool                        `json:"created"`
}
