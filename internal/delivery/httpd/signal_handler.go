package httpd

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

func (h *Handler) ListSignals(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.SignalFilter{
		Type:     models.SignalType(query.Get("type")),
		Severity: models.Severity(query.Get("severity")),
		Limit:    getIntQueryParam(r, "limit", 100),
	}
	if since := query.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = &t
	}

	signals, err := h.reviewService.ListSignals(r.Context(), chi.URLParam(r, "assessment_id"), filter)
	if err != nil {
		h.handleServiceError(w, err, "Failed to list signals")
		return
	}

	writeSuccess(w, models.ListResponse{Items: signals, Count: len(signals)})
}

func (h *Handler) ResolveSignal(w http.ResponseWriter, r *http.Request) {
	var req models.ResolveSignalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	signal, err := h.reviewService.ResolveSignal(r.Context(),
		chi.URLParam(r, "signal_id"), req.Status, reviewer(r), req.Notes)
	if err != nil {
		h.handleServiceError(w, err, "Failed to resolve signal")
		return
	}

	writeSuccess(w, signal)
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reviewService.Summary(r.Context(), r.URL.Query().Get("assessment_id"))
	if err != nil {
		h.handleServiceError(w, err, "Failed to build summary")
		return
	}

	writeSuccess(w, summary)
}
