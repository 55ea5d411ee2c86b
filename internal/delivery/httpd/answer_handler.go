package httpd

import (
	"net/http"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

// SubmitAnswer runs the integrity pipeline for one submitted answer.
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var answer models.Answer
	if !decodeJSON(w, r, &answer) {
		return
	}

	result, err := h.integrityService.ProcessAnswer(r.Context(), &answer)
	if err != nil {
		h.handleServiceError(w, err, "Failed to process answer")
		return
	}

	writeSuccess(w, result)
}

func (h *Handler) RecordSession(w http.ResponseWriter, r *http.Request) {
	var req models.RecordSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	record, err := h.integrityService.RecordSession(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, err, "Failed to record session")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    record,
	})
}
