// internal/common/http/response.go
package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "landreg-workers/internal/common/errors"
	"landreg-workers/internal/common/logger"
	"landreg-workers/internal/models"
)

// Headers carrying the caller's asserted identity. Authentication happens
// upstream; these are trusted as given.
const (
	HeaderActorID        = "X-Actor-Id"
	HeaderActorRole      = "X-Actor-Role"
	HeaderActorDistricts = "X-Actor-Districts"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error *apperrors.StandardError `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// WriteError answers with the status mapped from err's code.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, apperrors.HTTPStatus(err), ErrorBody{Error: apperrors.AsStandard(err)})
}

// ActorFromRequest reads the asserted actor. "*" in the districts header
// grants every district.
func ActorFromRequest(r *http.Request) models.Actor {
	actor := models.Actor{
		Identity: strings.TrimSpace(r.Header.Get(HeaderActorID)),
		Role:     strings.TrimSpace(r.Header.Get(HeaderActorRole)),
	}
	for _, part := range strings.Split(r.Header.Get(HeaderActorDistricts), ",") {
		part = strings.TrimSpace(part)
		if part == "*" {
			actor.AllDistricts = true
			continue
		}
		if d, err := strconv.Atoi(part); err == nil {
			actor.Districts = append(actor.Districts, d)
		}
	}
	return actor
}

// QueryInt parses an optional integer query parameter.
func QueryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError(name + " must be an integer")
	}
	return v, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging logs one line per request.
func Logging(log logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("http request", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"durationMs": time.Since(start).Milliseconds(),
		})
	})
}
