package enrichment

import (
	"net/http"
	"strings"

	apperrors "landreg-workers/internal/common/errors"
	commonhttp "landreg-workers/internal/common/http"
	"landreg-workers/internal/models"
)

// NewPrefillHandler serves GET ?type=&id= or ?type=&case=&district=.
func NewPrefillHandler(m *ReadModel) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		entityType, err := models.ParseEntityType(q.Get("type"))
		if err != nil {
			commonhttp.WriteError(w, apperrors.NewValidationError(err.Error()))
			return
		}

		var view *PrefillView
		if id := strings.TrimSpace(q.Get("id")); id != "" {
			view, err = m.ByStagingID(r.Context(), entityType, id)
		} else {
			district, derr := commonhttp.QueryInt(r, "district")
			if derr != nil {
				commonhttp.WriteError(w, derr)
				return
			}
			view, err = m.ByCase(r.Context(), entityType, strings.TrimSpace(q.Get("case")), district)
		}
		if err != nil {
			commonhttp.WriteError(w, err)
			return
		}
		commonhttp.WriteJSON(w, http.StatusOK, view)
	})
}

// ListResponse is one page of the moderation list.
type ListResponse struct {
	Entries []models.ListEntry `json:"entries"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
}

// NewListHandler serves GET ?district=&batch=&type=&limit=&offset=.
func NewListHandler(m *ReadModel) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		f, err := listFilter(r)
		if err != nil {
			commonhttp.WriteError(w, err)
			return
		}
		f = f.Normalized()
		entries, err := m.List(r.Context(), f)
		if err != nil {
			commonhttp.WriteError(w, err)
			return
		}
		commonhttp.WriteJSON(w, http.StatusOK, ListResponse{Entries: entries, Limit: f.Limit, Offset: f.Offset})
	})
}

func listFilter(r *http.Request) (models.ListFilter, error) {
	var (
		f   models.ListFilter
		err error
	)
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("type")); raw != "" {
		if f.EntityType, err = models.ParseEntityType(raw); err != nil {
			return f, apperrors.NewValidationError(err.Error())
		}
	}
	f.BatchID = strings.TrimSpace(q.Get("batch"))
	if f.District, err = commonhttp.QueryInt(r, "district"); err != nil {
		return f, err
	}
	if f.Limit, err = commonhttp.QueryInt(r, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = commonhttp.QueryInt(r, "offset"); err != nil {
		return f, err
	}
	return f, nil
}
