package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	commonhttp "landreg-workers/internal/common/http"
	"landreg-workers/internal/common/logger"
	"landreg-workers/internal/enrichment"
	"landreg-workers/internal/ingest"
)

type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

type routerDeps struct {
	ingest    *ingest.Service
	readModel *enrichment.ReadModel
	checks    []readinessCheck
	logger    logger.Logger
}

func newRouter(d routerDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		commonhttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
		})
	})
	mux.Handle("/ready", readyHandler(d.checks))
	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("/api/v1/staging/batches", ingest.NewHandler(d.ingest))
	mux.Handle("/api/v1/staging/prefill", enrichment.NewPrefillHandler(d.readModel))
	mux.Handle("/api/v1/staging/records", enrichment.NewListHandler(d.readModel))

	return commonhttp.Logging(d.logger, mux)
}

// readyHandler answers 503 naming every dependency that failed its ping.
func readyHandler(checks []readinessCheck) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		failed := map[string]string{}
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				failed[c.name] = err.Error()
			}
		}
		if len(failed) > 0 {
			commonhttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "not ready",
				"failed": failed,
			})
			return
		}
		commonhttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
	})
}
