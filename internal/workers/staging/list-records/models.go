package listrecords

import "landreg-workers/internal/models"

type Input struct {
	District   int    `json:"district,omitempty"`
	BatchID    string `json:"batchId,omitempty"`
	EntityType string `json:"entityType,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

type Output struct {
	Entries []models.ListEntry `json:"entries"`
	Count   int                `json:"count"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
	HasMore bool               `json:"hasMore"`
}
