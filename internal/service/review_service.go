package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/repository"
)

// ReviewService is the write-back and query side used by staff tooling.
type ReviewService interface {
	ListSignals(ctx context.Context, assessmentID string, filter models.SignalFilter) ([]models.CollaborationSignal, error)
	ResolveSignal(ctx context.Context, signalID string, status models.ResolutionStatus, resolver, notes string) (*models.CollaborationSignal, error)

	GetAnalysis(ctx context.Context, analysisID string) (*models.PlagiarismAnalysis, error)
	FindAnalyses(ctx context.Context, attemptID, questionID, answerID string) ([]models.PlagiarismAnalysis, error)
	ReviewQueue(ctx context.Context, limit int) ([]models.PlagiarismAnalysis, error)
	ReviewAnalysis(ctx context.Context, analysisID string, decision models.ReviewDecision, reviewer, notes string) (*models.PlagiarismAnalysis, error)
	DeleteAnalysis(ctx context.Context, analysisID string) error

	Summary(ctx context.Context, assessmentID string) (*models.IntegritySummary, error)
}

type reviewService struct {
	signals  repository.SignalRepository
	analyses repository.PlagiarismRepository
	logger   zerolog.Logger
	now      func() time.Time
}

func NewReviewService(
	signals repository.SignalRepository,
	analyses repository.PlagiarismRepository,
	logger zerolog.Logger,
) ReviewService {
	return &reviewService{
		signals:  signals,
		analyses: analyses,
		logger:   logger.With().Str("component", "review_service").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *reviewService) ListSignals(ctx context.Context, assessmentID string, filter models.SignalFilter) ([]models.CollaborationSignal, error) {
	signals, err := s.signals.ListByAssessment(ctx, assessmentID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	return signals, nil
}

func (s *reviewService) ResolveSignal(ctx context.Context, signalID string, status models.ResolutionStatus, resolver, notes string) (*models.CollaborationSignal, error) {
	if !status.Valid() {
		return nil, ErrInvalidResolution
	}

	found, err := s.signals.Resolve(ctx, signalID, status, resolver, notes, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve signal: %w", err)
	}
	if !found {
		return nil, ErrSignalNotFound
	}

	s.logger.Info().
		Str("signal_id", signalID).
		Str("status", string(status)).
		Str("resolved_by", resolver).
		Msg("Signal resolved")

	signal, err := s.signals.GetByID(ctx, signalID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload signal: %w", err)
	}
	if signal == nil {
		return nil, ErrSignalNotFound
	}
	return signal, nil
}

func (s *reviewService) GetAnalysis(ctx context.Context, analysisID string) (*models.PlagiarismAnalysis, error) {
	analysis, err := s.analyses.GetByID(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	if analysis == nil {
		return nil, ErrAnalysisNotFound
	}
	return analysis, nil
}

func (s *reviewService) FindAnalyses(ctx context.Context, attemptID, questionID, answerID string) ([]models.PlagiarismAnalysis, error) {
	if strings.TrimSpace(attemptID+questionID+answerID) == "" {
		return nil, ErrMissingFilter
	}

	analyses, err := s.analyses.Find(ctx, attemptID, questionID, answerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find analyses: %w", err)
	}
	return analyses, nil
}

func (s *reviewService) ReviewQueue(ctx context.Context, limit int) ([]models.PlagiarismAnalysis, error) {
	analyses, err := s.analyses.ReviewQueue(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load review queue: %w", err)
	}
	return analyses, nil
}

// ReviewAnalysis records the verdict once; the analysis itself is never
// rewritten.
func (s *reviewService) ReviewAnalysis(ctx context.Context, analysisID string, decision models.ReviewDecision, reviewer, notes string) (*models.PlagiarismAnalysis, error) {
	if !decision.Valid() {
		return nil, ErrInvalidDecision
	}

	applied, err := s.analyses.Review(ctx, analysisID, decision, reviewer, notes, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to review analysis: %w", err)
	}

	analysis, err := s.analyses.GetByID(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload analysis: %w", err)
	}
	if analysis == nil {
		return nil, ErrAnalysisNotFound
	}
	if !applied {
		return nil, ErrAlreadyReviewed
	}

	s.logger.Info().
		Str("analysis_id", analysisID).
		Str("decision", string(decision)).
		Str("reviewed_by", reviewer).
		Msg("Analysis reviewed")

	return analysis, nil
}

func (s *reviewService) DeleteAnalysis(ctx context.Context, analysisID string) error {
	deleted, err := s.analyses.Delete(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if !deleted {
		return ErrAnalysisNotFound
	}

	s.logger.Info().Str("analysis_id", analysisID).Msg("Analysis deleted")
	return nil
}

// Summary counts today's signals (UTC day) and flagged analyses waiting for a
// reviewer. An empty assessmentID summarises every assessment.
func (s *reviewService) Summary(ctx context.Context, assessmentID string) (*models.IntegritySummary, error) {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	bySeverity, err := s.signals.CountBySeveritySince(ctx, assessmentID, startOfDay)
	if err != nil {
		return nil, fmt.Errorf("failed to count signals: %w", err)
	}

	pending, err := s.analyses.CountPendingReview(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending reviews: %w", err)
	}

	summary := &models.IntegritySummary{
		AssessmentID:           assessmentID,
		SignalsTodayBySeverity: bySeverity,
		FlaggedPendingReview:   pending,
		GeneratedAt:            now,
	}
	for _, count := range bySeverity {
		summary.SignalsToday += count
	}
	return summary, nil
}
