package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.NewValidationError("bad"), http.StatusBadRequest},
		{apperrors.NewRecordNotFoundError("APPLICANT", "x"), http.StatusNotFound},
		{apperrors.NewAlreadyProcessedError("x", "ARCHIVED"), http.StatusConflict},
		{apperrors.NewDistrictForbiddenError("m", 5), http.StatusForbidden},
		{apperrors.NewTransientError("op", assert.AnError), http.StatusServiceUnavailable},
		{apperrors.NewIntegrityViolationError("broken"), http.StatusInternalServerError},
		{assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteError(rec, tt.err)
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())

		var body map[string]map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, string(apperrors.CodeOf(tt.err)), body["error"]["code"])
	}
}

func TestActorFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderActorID, " moderator-1 ")
	r.Header.Set(HeaderActorDistricts, "5, 7,x")

	actor := ActorFromRequest(r)
	assert.Equal(t, "moderator-1", actor.Identity)
	assert.Equal(t, []int{5, 7}, actor.Districts)
	assert.False(t, actor.AllDistricts)

	r.Header.Set(HeaderActorDistricts, "*")
	assert.True(t, ActorFromRequest(r).AllDistricts)
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?district=5&limit=abc", nil)

	v, err := QueryInt(r, "district")
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = QueryInt(r, "offset")
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = QueryInt(r, "limit")
	assert.Error(t, err)
}

func TestLogging(t *testing.T) {
	h := Logging(logger.NewTestLogger(t), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
