package ingestbatch

import "landreg-workers/internal/ingest"

// Input is an ingest request carried in the process variables.
type Input struct {
	ingest.Request
}

type Output struct {
	BatchID         string          `json:"batchId"`
	TotalRecords    int             `json:"totalRecords"`
	AcceptedRecords int             `json:"acceptedRecords"`
	RejectedRecords int             `json:"rejectedRecords"`
	Replayed        bool            `json:"replayed"`
	StagingIDs      []string        `json:"stagingIds"`
	IngestSummary   *ingest.Summary `json:"ingestSummary"`
}
