package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sajjad-MoBe/txlog/internal/metrics"
	"github.com/sajjad-MoBe/txlog/internal/tracing"
)

// Router creates and configures the HTTP router
func Router(handler *Handler, collector *metrics.Collector, gatherer prometheus.Gatherer, log zerolog.Logger) http.Handler {
	router := mux.NewRouter()

	router.Use(
		tracing.Middleware,
		LoggingMiddleware(log),
		RecoveryMiddleware,
		MetricsMiddleware(collector),
	)

	router.HandleFunc("/health", handler.HealthCheckHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/logs", handler.ListLogs).Methods(http.MethodGet)
	api.HandleFunc("/logs/{version}/entries", handler.ListEntries).Methods(http.MethodGet)
	api.HandleFunc("/recovery", handler.GetRecovery).Methods(http.MethodGet)
	api.HandleFunc("/recovery", handler.RunRecovery).Methods(http.MethodPost)

	return router
}
