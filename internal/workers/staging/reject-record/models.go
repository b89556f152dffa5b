package rejectrecord

import "landreg-workers/internal/models"

type Input struct {
	EntityType string       `json:"entityType"`
	StagingID  string       `json:"stagingId"`
	Reason     string       `json:"reason"`
	Actor      models.Actor `json:"actor"`
}

type Output struct {
	StagingID string            `json:"stagingId"`
	Status    models.StatusCode `json:"status"`
}
