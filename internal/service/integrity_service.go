package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/repository"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service/analyzer"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service/detector"
)

const (
	DefaultPersistRetries    = 2
	DefaultPersistRetryDelay = 50 * time.Millisecond

	notifyTimeout = 5 * time.Second
)

// Skipped entries for pipeline stages that are not detector checks.
const (
	SkippedRecordAnswer    = "record_answer"
	SkippedPlagiarism      = "plagiarism_analysis"
	SkippedPersistAnalysis = "persist_analysis"
	skippedPersistSignal   = "persist_signal"
)

type IntegrityService interface {
	// ProcessAnswer runs both detectors for one submitted answer. It fails
	// only when the answer itself is malformed.
	ProcessAnswer(ctx context.Context, answer *models.Answer) (*models.PipelineResult, error)
	RecordSession(ctx context.Context, req *models.RecordSessionRequest) (*models.DeviceRecord, error)
	// Analyze scores a text against a caller-supplied corpus without storing
	// anything.
	Analyze(ctx context.Context, req *models.AnalyzeRequest) (*models.PlagiarismAnalysis, error)
}

// Dispatcher runs fire-and-forget work. It reports false when the task was
// dropped.
type Dispatcher interface {
	Submit(task func()) bool
}

type IntegrityConfig struct {
	CollaborationEnabled bool
	PlagiarismEnabled    bool
	PersistRetries       int
	PersistRetryDelay    time.Duration
	MaxCorpus            int
}

type integrityService struct {
	answers    repository.AnswerRepository
	devices    repository.DeviceRepository
	signals    repository.SignalRepository
	analyses   repository.PlagiarismRepository
	detector   detector.CollaborationDetector
	analyzer   analyzer.PlagiarismAnalyzer
	notifier   Notifier
	dispatcher Dispatcher
	logger     zerolog.Logger
	config     IntegrityConfig
	now        func() time.Time
}

// NewIntegrityService wires the pipeline. A nil dispatcher delivers
// notifications inline.
func NewIntegrityService(
	answers repository.AnswerRepository,
	devices repository.DeviceRepository,
	signals repository.SignalRepository,
	analyses repository.PlagiarismRepository,
	collaborationDetector detector.CollaborationDetector,
	plagiarismAnalyzer analyzer.PlagiarismAnalyzer,
	notifier Notifier,
	dispatcher Dispatcher,
	logger zerolog.Logger,
	config IntegrityConfig,
) IntegrityService {
	if config.PersistRetries < 0 {
		config.PersistRetries = DefaultPersistRetries
	}
	if config.PersistRetryDelay <= 0 {
		config.PersistRetryDelay = DefaultPersistRetryDelay
	}
	if config.MaxCorpus <= 0 {
		config.MaxCorpus = analyzer.DefaultMaxCorpus
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}

	return &integrityService{
		answers:    answers,
		devices:    devices,
		signals:    signals,
		analyses:   analyses,
		detector:   collaborationDetector,
		analyzer:   plagiarismAnalyzer,
		notifier:   notifier,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "integrity_service").Logger(),
		config:     config,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *integrityService) ProcessAnswer(ctx context.Context, answer *models.Answer) (*models.PipelineResult, error) {
	startTime := time.Now()

	if err := validateAnswer(answer); err != nil {
		return nil, err
	}
	if answer.SubmittedAt.IsZero() {
		answer.SubmittedAt = s.now()
	}
	answer.SubmittedAt = answer.SubmittedAt.UTC()

	result := &models.PipelineResult{
		AnswerID: answer.ID,
		Signals:  []models.CollaborationSignal{},
	}

	if err := s.answers.Upsert(ctx, answer); err != nil {
		s.logger.Warn().Err(err).Str("answer_id", answer.ID).Msg("Failed to record answer, detecting anyway")
		result.Skipped = append(result.Skipped, SkippedRecordAnswer)
	}

	var (
		wg          sync.WaitGroup
		report      detector.Report
		analysis    *models.PlagiarismAnalysis
		analysisErr error
	)

	if s.config.CollaborationEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report = s.detector.Detect(ctx, answer)
		}()
	}

	if s.config.PlagiarismEnabled && answer.IsFreeText() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			analysis, analysisErr = s.analyze(ctx, answer)
		}()
	}

	wg.Wait()

	result.Skipped = append(result.Skipped, report.Skipped...)
	if analysisErr != nil {
		s.logger.Warn().Err(analysisErr).Str("answer_id", answer.ID).Msg("Plagiarism analysis skipped")
		result.Skipped = append(result.Skipped, SkippedPlagiarism)
	}

	for i := range report.Signals {
		signal := &report.Signals[i]
		err := s.persist(ctx, "signal", func(ctx context.Context) error {
			return s.signals.Create(ctx, signal)
		})
		if err != nil {
			s.logger.Error().Err(err).
				Str("signal_id", signal.ID).
				Str("type", signal.Type.String()).
				Msg("Dropping collaboration signal after retries")
			result.Skipped = append(result.Skipped, skippedPersistSignal+":"+signal.ID)
			continue
		}
		result.Signals = append(result.Signals, *signal)
		s.notify(answer.AssessmentID, signal)
	}

	if analysis != nil {
		var stored *models.PlagiarismAnalysis
		err := s.persist(ctx, "analysis", func(ctx context.Context) error {
			var (
				created bool
				err     error
			)
			stored, created, err = s.analyses.Create(ctx, analysis)
			if err == nil && !created {
				s.logger.Debug().Str("answer_id", answer.ID).Msg("Analysis already stored, keeping original verdict")
			}
			return err
		})
		if err != nil {
			s.logger.Error().Err(err).Str("answer_id", answer.ID).Msg("Dropping plagiarism analysis after retries")
			result.Skipped = append(result.Skipped, SkippedPersistAnalysis)
			stored = analysis
		}
		result.Analysis = stored
	}

	result.ProcessingTimeMs = int(time.Since(startTime).Milliseconds())

	s.logger.Info().
		Str("answer_id", answer.ID).
		Str("assessment_id", answer.AssessmentID).
		Int("signals", len(result.Signals)).
		Bool("analysed", result.Analysis != nil).
		Strs("skipped", result.Skipped).
		Int("processing_time_ms", result.ProcessingTimeMs).
		Msg("Answer processed")

	return result, nil
}

func (s *integrityService) analyze(ctx context.Context, answer *models.Answer) (*models.PlagiarismAnalysis, error) {
	corpus, err := s.answers.ListCorpus(ctx, answer.AssessmentID, answer.QuestionID, answer.ID, answer.ParticipantID, s.config.MaxCorpus)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load corpus: %v", ErrDetectorUnavailable, err)
	}

	analysis := s.analyzer.Analyze(ctx, answer.Text, corpus, answer.ID)
	analysis.AttemptID = answer.AttemptID
	analysis.QuestionID = answer.QuestionID
	analysis.AssessmentID = answer.AssessmentID
	analysis.ParticipantID = answer.ParticipantID
	return analysis, nil
}

// persist retries fn with linear back-off.
func (s *integrityService) persist(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.config.PersistRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("failed to persist %s: %w", what, ctx.Err())
			case <-time.After(time.Duration(attempt) * s.config.PersistRetryDelay):
			}
		}

		if err = fn(ctx); err == nil {
			return nil
		}
		s.logger.Warn().Err(err).Str("item", what).Int("attempt", attempt+1).Msg("Persist failed")
	}
	return fmt.Errorf("failed to persist %s: %w", what, err)
}

func (s *integrityService) notify(assessmentID string, signal *models.CollaborationSignal) {
	notification := models.NewSignalNotification(signal)
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.NotifySignal(ctx, assessmentID, notification); err != nil {
			s.logger.Warn().Err(err).Str("signal_id", notification.SignalID).Msg("Failed to push signal notification")
		}
	}

	if s.dispatcher == nil {
		task()
		return
	}
	if !s.dispatcher.Submit(task) {
		s.logger.Warn().Str("signal_id", notification.SignalID).Msg("Signal notification dropped, dispatcher is full")
	}
}

func (s *integrityService) RecordSession(ctx context.Context, req *models.RecordSessionRequest) (*models.DeviceRecord, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidSession)
	}
	if strings.TrimSpace(req.AssessmentID) == "" || strings.TrimSpace(req.ParticipantID) == "" {
		return nil, fmt.Errorf("%w: assessment_id and participant_id are required", ErrInvalidSession)
	}
	if strings.TrimSpace(req.NetworkOrigin) == "" {
		return nil, fmt.Errorf("%w: network_origin is required", ErrInvalidSession)
	}

	record := &models.DeviceRecord{
		ID:                uuid.New().String(),
		AssessmentID:      req.AssessmentID,
		ParticipantID:     req.ParticipantID,
		AttemptID:         req.AttemptID,
		NetworkOrigin:     req.NetworkOrigin,
		ClientFingerprint: req.ClientFingerprint,
		UserAgent:         req.UserAgent,
		LoginAt:           s.now(),
	}
	if req.LoginAt != nil && !req.LoginAt.IsZero() {
		record.LoginAt = req.LoginAt.UTC()
	}

	if err := s.devices.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}

	s.logger.Debug().
		Str("assessment_id", record.AssessmentID).
		Str("participant_id", record.ParticipantID).
		Str("network_origin", record.NetworkOrigin).
		Msg("Session recorded")

	return record, nil
}

func (s *integrityService) Analyze(ctx context.Context, req *models.AnalyzeRequest) (*models.PlagiarismAnalysis, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidAnswer)
	}
	answerID := req.AnswerID
	if answerID == "" {
		answerID = uuid.New().String()
	}
	return s.analyzer.Analyze(ctx, req.Text, req.Corpus, answerID), nil
}

func validateAnswer(answer *models.Answer) error {
	if answer == nil {
		return fmt.Errorf("%w: empty answer", ErrInvalidAnswer)
	}

	required := []struct{ field, value string }{
		{"answer_id", answer.ID},
		{"assessment_id", answer.AssessmentID},
		{"attempt_id", answer.AttemptID},
		{"participant_id", answer.ParticipantID},
		{"question_id", answer.QuestionID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidAnswer, r.field)
		}
	}

	if !answer.QuestionType.Valid() {
		return fmt.Errorf("%w: unknown question_type %q", ErrInvalidAnswer, answer.QuestionType)
	}
	if !answer.IsFreeText() && strings.TrimSpace(answer.ChoiceID) == "" {
		return fmt.Errorf("%w: choice_id is required for %s questions", ErrInvalidAnswer, answer.QuestionType)
	}
	return nil
}
