package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/ipldash/internal/stats"
)

// APIReport returns a report table as JSON
func (h *Handlers) APIReport(w http.ResponseWriter, r *http.Request) {
	report, ok := stats.Lookup(chi.URLParam(r, "id"))
	if !ok || report.AdminOnly {
		h.jsonError(w, "Report not found", http.StatusNotFound)
		return
	}

	params, err := stats.ParseParams(report, r.URL.Query(), h.defaultLimit())
	if err != nil {
		h.jsonError(w, invalidSelection(err), http.StatusBadRequest)
		return
	}

	table, err := h.statsService.Run(r.Context(), report.ID, params)
	if err != nil {
		status, message := reportError(err)
		h.jsonError(w, message, status)
		return
	}

	h.jsonResponse(w, http.StatusOK, map[string]any{
		"report": report.ID,
		"params": params,
		"table":  table,
	})
}

// APIYears returns the match years for the year dropdowns
func (h *Handlers) APIYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.statsService.Years(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list years")
		h.jsonError(w, reportFailed, http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]any{"years": years})
}

// APIMatches returns match ids from the batting (default) or bowling table
func (h *Handlers) APIMatches(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "batting"
	}

	ids, err := h.statsService.MatchIDs(r.Context(), source)
	if errors.Is(err, stats.ErrInvalidParam) {
		h.jsonError(w, invalidSelection(err), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to list matches")
		h.jsonError(w, reportFailed, http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]any{"source": source, "matches": ids})
}

// APIPlayers returns the batsmen offered by the key dismissals report
func (h *Handlers) APIPlayers(w http.ResponseWriter, r *http.Request) {
	names, err := h.statsService.BattingPlayerNames(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list players")
		h.jsonError(w, reportFailed, http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]any{"players": names})
}

// Healthz reports whether the database answers
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		log.Warn().Err(err).Msg("Health check failed")
		h.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
