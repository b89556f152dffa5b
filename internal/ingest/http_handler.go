package ingest

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "landreg-workers/internal/common/errors"
	commonhttp "landreg-workers/internal/common/http"
)

const maxBodyBytes = 8 << 20

// NewHandler serves POST with a JSON Request body. A replayed submission
// answers 200 with the original summary, a new one 201.
func NewHandler(s *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
			commonhttp.WriteError(w, apperrors.NewValidationError("content type must be application/json"))
			return
		}

		var req Request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			commonhttp.WriteError(w, apperrors.NewValidationError("invalid request body: "+err.Error()))
			return
		}
		if strings.TrimSpace(req.SubmittedBy) == "" {
			req.SubmittedBy = commonhttp.ActorFromRequest(r).Identity
		}

		summary, err := s.Ingest(r.Context(), req)
		if err != nil {
			commonhttp.WriteError(w, err)
			return
		}
		status := http.StatusCreated
		if summary.Replayed {
			status = http.StatusOK
		}
		commonhttp.WriteJSON(w, status, summary)
	})
}
