package httpd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/middleware"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service"
)

type stubIntegrity struct {
	processErr error
	lastAnswer *models.Answer
}

func (s *stubIntegrity) ProcessAnswer(_ context.Context, answer *models.Answer) (*models.PipelineResult, error) {
	s.lastAnswer = answer
	if s.processErr != nil {
		return nil, s.processErr
	}
	return &models.PipelineResult{AnswerID: answer.ID, Signals: []models.CollaborationSignal{}}, nil
}

func (s *stubIntegrity) RecordSession(_ context.Context, req *models.RecordSessionRequest) (*models.DeviceRecord, error) {
	if req.NetworkOrigin == "" {
		return nil, service.ErrInvalidSession
	}
	return &models.DeviceRecord{ID: "dev-1", AssessmentID: req.AssessmentID, NetworkOrigin: req.NetworkOrigin}, nil
}

func (s *stubIntegrity) Analyze(_ context.Context, req *models.AnalyzeRequest) (*models.PlagiarismAnalysis, error) {
	return &models.PlagiarismAnalysis{AnswerID: req.AnswerID, RiskLevel: models.RiskLevelLow}, nil
}

type reviewCall struct {
	id, reviewer string
	decision     models.ReviewDecision
}

type stubReview struct {
	reviewErr  error
	lastReview reviewCall
	lastFilter models.SignalFilter
	resolvedBy string
	deleted    []string
}

func (s *stubReview) ListSignals(_ context.Context, _ string, filter models.SignalFilter) ([]models.CollaborationSignal, error) {
	s.lastFilter = filter
	return []models.CollaborationSignal{{ID: "sig-1"}}, nil
}

func (s *stubReview) ResolveSignal(_ context.Context, id string, status models.ResolutionStatus, resolver, _ string) (*models.CollaborationSignal, error) {
	if !status.Valid() {
		return nil, service.ErrInvalidResolution
	}
	s.resolvedBy = resolver
	return &models.CollaborationSignal{ID: id, ResolutionStatus: status}, nil
}

func (s *stubReview) GetAnalysis(_ context.Context, id string) (*models.PlagiarismAnalysis, error) {
	if id != "an-1" {
		return nil, service.ErrAnalysisNotFound
	}
	return &models.PlagiarismAnalysis{ID: id}, nil
}

func (s *stubReview) FindAnalyses(_ context.Context, attemptID, questionID, answerID string) ([]models.PlagiarismAnalysis, error) {
	if attemptID+questionID+answerID == "" {
		return nil, service.ErrMissingFilter
	}
	return []models.PlagiarismAnalysis{{ID: "an-1"}}, nil
}

func (s *stubReview) ReviewQueue(context.Context, int) ([]models.PlagiarismAnalysis, error) {
	return []models.PlagiarismAnalysis{}, nil
}

func (s *stubReview) ReviewAnalysis(_ context.Context, id string, decision models.ReviewDecision, reviewer, _ string) (*models.PlagiarismAnalysis, error) {
	s.lastReview = reviewCall{id: id, reviewer: reviewer, decision: decision}
	if s.reviewErr != nil {
		return nil, s.reviewErr
	}
	return &models.PlagiarismAnalysis{ID: id, ReviewDecision: &decision}, nil
}

func (s *stubReview) DeleteAnalysis(_ context.Context, id string) error {
	if id != "an-1" {
		return service.ErrAnalysisNotFound
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubReview) Summary(_ context.Context, assessmentID string) (*models.IntegritySummary, error) {
	return &models.IntegritySummary{AssessmentID: assessmentID, SignalsToday: 4}, nil
}

var secret = []byte("handler-test-secret")

func newRouter(integrity *stubIntegrity, review *stubReview, withAuth bool) http.Handler {
	router := chi.NewRouter()
	var auth func(http.Handler) http.Handler
	if withAuth {
		auth = middleware.JWTAuth(secret, "", zerolog.Nop())
	}
	status := func(context.Context) *models.ServiceStatus {
		return &models.ServiceStatus{Status: "healthy", Database: true}
	}
	NewHandler(integrity, review, status, zerolog.Nop()).RegisterRoutes(router, auth)
	return router
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + token
}

func do(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAnswer(t *testing.T) {
	integrity := &stubIntegrity{}
	router := newRouter(integrity, &stubReview{}, false)

	body := `{"answer_id":"ans-1","assessment_id":"exam-1","attempt_id":"att-1","participant_id":"p1",
		"question_id":"q1","question_type":"free_text","text":"An answer.","submitted_at":"2024-06-15T10:00:00Z"}`
	rec := do(router, http.MethodPost, "/api/v1/answers", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool                  `json:"success"`
		Data    models.PipelineResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Data.AnswerID != "ans-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if integrity.lastAnswer.Text != "An answer." || integrity.lastAnswer.SubmittedAt.IsZero() {
		t.Fatalf("expected answer decoded, got %+v", integrity.lastAnswer)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		integrity  *stubIntegrity
		review     *stubReview
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"bad json", &stubIntegrity{}, &stubReview{}, http.MethodPost, "/api/v1/answers", `{`, http.StatusBadRequest},
		{"invalid answer", &stubIntegrity{processErr: fmt.Errorf("%w: question_id is required", service.ErrInvalidAnswer)},
			&stubReview{}, http.MethodPost, "/api/v1/answers", `{}`, http.StatusBadRequest},
		{"unexpected failure", &stubIntegrity{processErr: fmt.Errorf("disk full")},
			&stubReview{}, http.MethodPost, "/api/v1/answers", `{}`, http.StatusInternalServerError},
		{"invalid session", &stubIntegrity{}, &stubReview{}, http.MethodPost, "/api/v1/sessions", `{"assessment_id":"exam-1"}`, http.StatusBadRequest},
		{"session created", &stubIntegrity{}, &stubReview{}, http.MethodPost, "/api/v1/sessions",
			`{"assessment_id":"exam-1","participant_id":"p1","network_origin":"10.0.0.1"}`, http.StatusCreated},
		{"analysis not found", &stubIntegrity{}, &stubReview{}, http.MethodGet, "/api/v1/plagiarism/analyses/an-404", "", http.StatusNotFound},
		{"missing filter", &stubIntegrity{}, &stubReview{}, http.MethodGet, "/api/v1/plagiarism/analyses", "", http.StatusBadRequest},
		{"already reviewed", &stubIntegrity{}, &stubReview{reviewErr: service.ErrAlreadyReviewed},
			http.MethodPut, "/api/v1/plagiarism/analyses/an-1/review", `{"decision":"accepted"}`, http.StatusConflict},
		{"invalid resolution", &stubIntegrity{}, &stubReview{}, http.MethodPut, "/api/v1/signals/sig-1/resolution", `{"status":"escalated"}`, http.StatusBadRequest},
		{"bad since", &stubIntegrity{}, &stubReview{}, http.MethodGet, "/api/v1/assessments/exam-1/signals?since=yesterday", "", http.StatusBadRequest},
		{"delete", &stubIntegrity{}, &stubReview{}, http.MethodDelete, "/api/v1/plagiarism/analyses/an-1", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newRouter(tt.integrity, tt.review, false), tt.method, tt.path, tt.body, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestListSignalsPassesFilter(t *testing.T) {
	review := &stubReview{}
	router := newRouter(&stubIntegrity{}, review, false)

	rec := do(router, http.MethodGet,
		"/api/v1/assessments/exam-1/signals?type=timing_correlation&severity=high&limit=5&since=2024-06-15T00:00:00Z", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	f := review.lastFilter
	if f.Type != models.SignalTypeTimingCorrelation || f.Severity != models.SeverityHigh || f.Limit != 5 || f.Since == nil {
		t.Fatalf("unexpected filter %+v", f)
	}
}

func TestAuthGuardsAPIButNotHealth(t *testing.T) {
	review := &stubReview{}
	router := newRouter(&stubIntegrity{}, review, true)

	if rec := do(router, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected open health check, got %d", rec.Code)
	}
	if rec := do(router, http.MethodGet, "/api/v1/stats/summary", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec := do(router, http.MethodPut, "/api/v1/plagiarism/analyses/an-1/review",
		`{"decision":"rejected","notes":"coincidence"}`,
		map[string]string{"Authorization": bearer(t, "instructor-42")})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if review.lastReview.reviewer != "instructor-42" || review.lastReview.decision != models.ReviewRejected {
		t.Fatalf("expected reviewer from token, got %+v", review.lastReview)
	}
}

func TestReviewerHeaderWithoutAuth(t *testing.T) {
	review := &stubReview{}
	router := newRouter(&stubIntegrity{}, review, false)

	rec := do(router, http.MethodPut, "/api/v1/signals/sig-1/resolution", `{"status":"dismissed"}`,
		map[string]string{"X-Reviewer": "proctor-3"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if review.resolvedBy != "proctor-3" {
		t.Fatalf("expected reviewer from header, got %q", review.resolvedBy)
	}
}

func TestStatus(t *testing.T) {
	rec := do(newRouter(&stubIntegrity{}, &stubReview{}, false), http.MethodGet, "/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
