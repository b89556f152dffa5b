package models

import "time"

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ListFilter narrows the moderation list. Zero values mean "any".
type ListFilter struct {
	District   int
	BatchID    string
	EntityType EntityType
	Limit      int
	Offset     int
}

// ListEntry is one row of the union of pending staging records and
// production entities.
type ListEntry struct {
	Origin            Origin     `json:"origin"`
	EntityType        EntityType `json:"entityType"`
	ID                string     `json:"id"`
	District          int        `json:"district"`
	CaseOpeningNumber string     `json:"caseOpeningNumber,omitempty"`
	Label             string     `json:"label"`
	Key               string     `json:"key"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// Normalized applies the default page size and clamps limit and offset.
func (f ListFilter) Normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
