package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

// AnalyzeText scores a text against a supplied corpus. Nothing is stored.
func (h *Handler) AnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	analysis, err := h.integrityService.Analyze(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, err, "Failed to analyze text")
		return
	}

	writeSuccess(w, analysis)
}

func (h *Handler) FindAnalyses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	analyses, err := h.reviewService.FindAnalyses(r.Context(),
		query.Get("attempt_id"), query.Get("question_id"), query.Get("answer_id"))
	if err != nil {
		h.handleServiceError(w, err, "Failed to find analyses")
		return
	}

	writeSuccess(w, models.ListResponse{Items: analyses, Count: len(analyses)})
}

func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.reviewService.GetAnalysis(r.Context(), chi.URLParam(r, "analysis_id"))
	if err != nil {
		h.handleServiceError(w, err, "Failed to get analysis")
		return
	}

	writeSuccess(w, analysis)
}

func (h *Handler) DeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	analysisID := chi.URLParam(r, "analysis_id")
	if err := h.reviewService.DeleteAnalysis(r.Context(), analysisID); err != nil {
		h.handleServiceError(w, err, "Failed to delete analysis")
		return
	}

	h.logger.Info().Str("analysis_id", analysisID).Str("reviewer", reviewer(r)).Msg("Analysis deleted via API")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReviewAnalysis(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewAnalysisRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	analysis, err := h.reviewService.ReviewAnalysis(r.Context(),
		chi.URLParam(r, "analysis_id"), req.Decision, reviewer(r), req.Notes)
	if err != nil {
		h.handleServiceError(w, err, "Failed to review analysis")
		return
	}

	writeSuccess(w, analysis)
}

func (h *Handler) GetReviewQueue(w http.ResponseWriter, r *http.Request) {
	analyses, err := h.reviewService.ReviewQueue(r.Context(), getIntQueryParam(r, "limit", 50))
	if err != nil {
		h.handleServiceError(w, err, "Failed to load review queue")
		return
	}

	writeSuccess(w, models.ListResponse{Items: analyses, Count: len(analyses)})
}
