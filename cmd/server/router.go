package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "supplytrail/internal/audit/handler"
	"supplytrail/internal/outcomes"
	"supplytrail/internal/platform/config"
	"supplytrail/internal/platform/middleware"
	"supplytrail/internal/transport/http/shared"
	dErrors "supplytrail/pkg/domain-errors"
)

// newRouter assembles the HTTP surface. Health and metrics sit outside the
// auth boundary; everything else requires a bearer token when tokens are
// configured.
func newRouter(cfg config.Server, log *slog.Logger, audit *audithandler.Handler, outcome *outcomes.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		shared.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.AuthTokens))
		audit.Register(r)
		outcome.Register(r)
	})

	return r
}
