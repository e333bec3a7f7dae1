package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
	"github.com/sajjad-MoBe/txlog/internal/metrics"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// RecoveryMiddleware is a middleware that recovers panics and writes JSON errors
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				handleError(w, txErr.RecoverError(rec))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func statusOf(err error) int {
	switch {
	case txErr.IsNotFound(err):
		return http.StatusNotFound
	case txErr.IsInvalidInput(err):
		return http.StatusBadRequest
	case txErr.IsUnsupportedVersion(err), txErr.IsUnknownEntryType(err),
		txErr.IsCommandDecode(err), txErr.IsCorruption(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// handleError writes an error response to the client
func handleError(w http.ResponseWriter, err error) {
	errType := txErr.TypeOf(err)
	if errType == "" {
		errType = txErr.ErrorTypeInternal
	}

	response := ErrorResponse{}
	response.Error.Type = string(errType)
	response.Error.Message = err.Error()
	writeJSON(w, statusOf(err), response)
}

// responseWriter is a custom response writer that captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs request details
func LoggingMiddleware(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.statusCode).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// MetricsMiddleware records request counts and durations by route template
func MetricsMiddleware(collector *metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					path = tmpl
				}
			}
			collector.RecordRequest(r.Method, path, strconv.Itoa(rw.statusCode), time.Since(start))
		})
	}
}
