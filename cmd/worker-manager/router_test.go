package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"landreg-workers/internal/common/logger"
	"landreg-workers/internal/enrichment"
	"landreg-workers/internal/ingest"
	"landreg-workers/internal/matcher"
	"landreg-workers/internal/testsupport"
	"landreg-workers/pkg/recordschema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T, checks ...readinessCheck) http.Handler {
	log := logger.NewTestLogger(t)
	store := testsupport.NewStore()
	m := matcher.New(store, log)
	schemas, err := recordschema.NewValidator(recordschema.Default())
	require.NoError(t, err)

	return newRouter(routerDeps{
		ingest:    ingest.NewService(ingest.Dependencies{Store: store, Matcher: m, Schemas: schemas, Logger: log}, ingest.Config{}),
		readModel: enrichment.NewReadModel(store, m, log),
		checks:    checks,
		logger:    log,
	})
}

func TestRouter_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestRouter_Ready(t *testing.T) {
	ok := readinessCheck{name: "postgres", check: func(context.Context) error { return nil }}
	down := readinessCheck{name: "redis", check: func(context.Context) error { return errors.New("connection refused") }}

	rec := httptest.NewRecorder()
	testRouter(t, ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	testRouter(t, ok, down).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Failed map[string]string `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Failed, "redis")
	assert.NotContains(t, body.Failed, "postgres")
}

func TestRouter_IngestThenList(t *testing.T) {
	h := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/staging/batches", strings.NewReader(`{
		"targetDistrict": 5,
		"caseOpeningNumber": "CO-2024-001",
		"submittedBy": "surveyor-7",
		"records": [{"type": "PARCEL", "payload": {"lotIdentifier": "L-12"}}]
	}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/staging/records?district=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list enrichment.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Entries, 1)
}

func TestRouter_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
