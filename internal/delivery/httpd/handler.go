package httpd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/middleware"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service"
)

const maxBodyBytes = 1 << 20

// StatusFunc reports the health of the service's dependencies.
type StatusFunc func(ctx context.Context) *models.ServiceStatus

type Handler struct {
	integrityService service.IntegrityService
	reviewService    service.ReviewService
	status           StatusFunc
	logger           zerolog.Logger
}

func NewHandler(
	integrityService service.IntegrityService,
	reviewService service.ReviewService,
	status StatusFunc,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		integrityService: integrityService,
		reviewService:    reviewService,
		status:           status,
		logger:           logger.With().Str("component", "http_handler").Logger(),
	}
}

// RegisterRoutes mounts the API. auth, when non-nil, guards every /api/v1
// route.
func (h *Handler) RegisterRoutes(router chi.Router, auth func(http.Handler) http.Handler) {
	router.Get("/health", h.HealthCheck)
	router.Get("/status", h.GetServiceStatus)

	router.Route("/api/v1", func(api chi.Router) {
		if auth != nil {
			api.Use(auth)
		}

		api.Post("/answers", h.SubmitAnswer)
		api.Post("/sessions", h.RecordSession)

		api.Route("/plagiarism", func(r chi.Router) {
			r.Post("/analyze", h.AnalyzeText)
			r.Get("/analyses", h.FindAnalyses)
			r.Get("/analyses/{analysis_id}", h.GetAnalysis)
			r.Delete("/analyses/{analysis_id}", h.DeleteAnalysis)
			r.Put("/analyses/{analysis_id}/review", h.ReviewAnalysis)
			r.Get("/review-queue", h.GetReviewQueue)
		})

		api.Get("/assessments/{assessment_id}/signals", h.ListSignals)
		api.Put("/signals/{signal_id}/resolution", h.ResolveSignal)
		api.Get("/stats/summary", h.GetSummary)
	})
}

// handleServiceError maps service sentinels to status codes.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrInvalidAnswer),
		errors.Is(err, service.ErrInvalidSession),
		errors.Is(err, service.ErrInvalidDecision),
		errors.Is(err, service.ErrInvalidResolution),
		errors.Is(err, service.ErrMissingFilter):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAnalysisNotFound),
		errors.Is(err, service.ErrSignalNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyReviewed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrDetectorUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error().Err(err).Msg(msg)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

// reviewer is the token subject, or the X-Reviewer header when auth is off.
func reviewer(r *http.Request) string {
	if id := middleware.ReviewerFromContext(r.Context()); id != "" {
		return id
	}
	if id := r.Header.Get("X-Reviewer"); id != "" {
		return id
	}
	return "anonymous"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func getIntQueryParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	response := map[string]interface{}{
		"success": true,
		"data":    data,
	}
	writeJSON(w, http.StatusOK, response)
}
