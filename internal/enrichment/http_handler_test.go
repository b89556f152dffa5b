package enrichment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"landreg-workers/internal/models"
	"landreg-workers/internal/testsupport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefillHandler(t *testing.T) {
	store := testsupport.NewStore()
	store.AddRecord(pendingApplicant(map[string]interface{}{"identityNumber": "123456789012"}))
	h := NewPrefillHandler(newReadModel(t, store))

	tests := []struct {
		name   string
		method string
		url    string
		want   int
	}{
		{"by id", http.MethodGet, "/api/v1/staging/prefill?type=applicant&id=" + recordID, http.StatusOK},
		{"by case", http.MethodGet, "/api/v1/staging/prefill?type=APPLICANT&case=CO-2024-001&district=5", http.StatusOK},
		{"unknown id", http.MethodGet, "/api/v1/staging/prefill?type=APPLICANT&id=00000000-0000-4000-8000-00000000dead", http.StatusNotFound},
		{"bad type", http.MethodGet, "/api/v1/staging/prefill?type=dossier&id=" + recordID, http.StatusBadRequest},
		{"bad district", http.MethodGet, "/api/v1/staging/prefill?type=PARCEL&case=CO-1&district=five", http.StatusBadRequest},
		{"wrong method", http.MethodPost, "/api/v1/staging/prefill?type=APPLICANT&id=" + recordID, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.url, nil))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestListHandler(t *testing.T) {
	store := testsupport.NewStore()
	store.AddRecord(pendingApplicant(map[string]interface{}{"lastName": "RAKOTO"}))
	h := NewListHandler(newReadModel(t, store))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/staging/records?district=5&type=applicant", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, models.OriginStaging, resp.Entries[0].Origin)
	assert.Equal(t, models.DefaultListLimit, resp.Limit)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/staging/records?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
