package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
	"github.com/sajjad-MoBe/txlog/internal/logentry"
)

const (
	defaultEntryLimit = 100
	maxEntryLimit     = 1000
)

// Handler handles HTTP requests for the transaction log
type Handler struct {
	logs          LogService
	healthManager *HealthManager
	log           zerolog.Logger
}

// NewHandler creates a new API handler
func NewHandler(logs LogService, healthManager *HealthManager, log zerolog.Logger) *Handler {
	return &Handler{logs: logs, healthManager: healthManager, log: log}
}

// EntryView is the JSON form of a log entry.
type EntryView struct {
	Type        string                `json:"type"`
	Version     string                `json:"version"`
	Position    *logentry.LogPosition `json:"position,omitempty"`
	TxID        *int64                `json:"tx_id,omitempty"`
	Description string                `json:"description"`
}

func viewOf(e logentry.LogEntry) EntryView {
	view := EntryView{
		Type:        e.Type().String(),
		Version:     e.Version().String(),
		Description: e.String(),
	}
	switch entry := e.(type) {
	case *logentry.Start:
		pos := entry.StartPosition
		view.Position = &pos
	case *logentry.Commit:
		txID := entry.TxID
		view.TxID = &txID
	}
	return view
}

// HealthCheckHandler runs the health checks
func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	healthy := h.healthManager.RunHealthChecks(r.Context())
	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}
	writeJSON(w, status, map[string]interface{}{
		"status":     overall,
		"components": h.healthManager.GetStatus(),
	})
}

// ListLogs lists the log files
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	files, err := h.logs.LogFiles()
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

// ListEntries lists the entries of one log version
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.ParseInt(mux.Vars(r)["version"], 10, 64)
	if err != nil || version < 0 {
		h.handleError(w, txErr.Newf(txErr.ErrorTypeInvalidInput, "invalid log version %q", mux.Vars(r)["version"]))
		return
	}

	limit := defaultEntryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxEntryLimit {
			h.handleError(w, txErr.Newf(txErr.ErrorTypeInvalidInput, "limit must be between 1 and %d", maxEntryLimit))
			return
		}
	}

	entries, err := h.logs.Entries(r.Context(), version, limit)
	if err != nil {
		h.handleError(w, err)
		return
	}

	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, viewOf(e))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": version,
		"entries": views,
	})
}

// RunRecovery replays the log into a fresh store
func (h *Handler) RunRecovery(w http.ResponseWriter, r *http.Request) {
	report, err := h.logs.Recover(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetRecovery returns the last recovery report
func (h *Handler) GetRecovery(w http.ResponseWriter, r *http.Request) {
	report, ok := h.logs.LastRecovery()
	if !ok {
		h.handleError(w, txErr.Newf(txErr.ErrorTypeNotFound, "no recovery has run"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	if status := statusOf(err); status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}
	handleError(w, err)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
