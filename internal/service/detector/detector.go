package detector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/cache"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

const (
	DefaultSimilarityWindow          = 3 * time.Hour
	DefaultMaxComparisons            = 500
	DefaultCheckTimeout              = 300 * time.Millisecond
	DefaultAnswerMatchThreshold      = 0.8
	DefaultAnswerSimilarityThreshold = 0.8
	DefaultMinSharedQuestions        = 3
	DefaultSimultaneityWindow        = 5 * time.Second
	DefaultSimultaneityRecurrences   = 5
	DefaultTimingThreshold           = 0.9
	DefaultMinTimingSamples          = 3
	DefaultSignalCooldown            = 30 * time.Minute
)

const (
	CheckAnswerSimilarity  = "answer_similarity"
	CheckSimultaneity      = "simultaneity"
	CheckTimingCorrelation = "timing_correlation"
	CheckSharedOrigin      = "shared_origin"
)

type AnswerReader interface {
	ListByQuestionSince(ctx context.Context, assessmentID, questionID string, since time.Time, limit int) ([]models.Answer, error)
	ListByQuestionBetween(ctx context.Context, assessmentID, questionID string, from, to time.Time) ([]models.Answer, error)
	ListByAttempts(ctx context.Context, attemptIDs []string) ([]models.Answer, error)
}

type DeviceReader interface {
	ListSince(ctx context.Context, assessmentID string, since time.Time) ([]models.DeviceRecord, error)
}

type PairStore interface {
	Get(ctx context.Context, assessmentID, attemptA, attemptB string) (*models.AttemptSimilarityRecord, error)
	Merge(ctx context.Context, assessmentID, attemptA, attemptB string, matches models.QuestionMatches) (*models.AttemptSimilarityRecord, error)
}

type DetectorConfig struct {
	SimilarityWindow     time.Duration
	MaxComparisons       int
	CheckTimeout         time.Duration
	AnswerMatchThreshold float64
	AggregateThreshold   float64
	MinSharedQuestions   int
	SimultaneityWindow   time.Duration
	TimingThreshold      float64
	MinTimingSamples     int
	SignalCooldown       time.Duration
}

func (c *DetectorConfig) applyDefaults() {
	if c.SimilarityWindow <= 0 {
		c.SimilarityWindow = DefaultSimilarityWindow
	}
	if c.MaxComparisons <= 0 {
		c.MaxComparisons = DefaultMaxComparisons
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = DefaultCheckTimeout
	}
	if c.AnswerMatchThreshold <= 0 {
		c.AnswerMatchThreshold = DefaultAnswerMatchThreshold
	}
	if c.AggregateThreshold <= 0 {
		c.AggregateThreshold = DefaultAnswerSimilarityThreshold
	}
	if c.MinSharedQuestions <= 0 {
		c.MinSharedQuestions = DefaultMinSharedQuestions
	}
	if c.SimultaneityWindow <= 0 {
		c.SimultaneityWindow = DefaultSimultaneityWindow
	}
	if c.TimingThreshold <= 0 {
		c.TimingThreshold = DefaultTimingThreshold
	}
	if c.MinTimingSamples <= 0 {
		c.MinTimingSamples = DefaultMinTimingSamples
	}
	if c.SignalCooldown <= 0 {
		c.SignalCooldown = DefaultSignalCooldown
	}
}

// Report is the outcome of one detector run. Skipped lists the checks that
// failed or timed out.
type Report struct {
	Signals []models.CollaborationSignal
	Skipped []string
}

type CollaborationDetector interface {
	OnNewAnswer(ctx context.Context, answer *models.Answer) []models.CollaborationSignal
	Detect(ctx context.Context, answer *models.Answer) Report
}

type collaborationDetector struct {
	answers AnswerReader
	devices DeviceReader
	pairs   PairStore
	state   *cache.EphemeralState
	logger  zerolog.Logger
	config  DetectorConfig
	now     func() time.Time
}

func NewCollaborationDetector(
	answers AnswerReader,
	devices DeviceReader,
	pairs PairStore,
	state *cache.EphemeralState,
	logger zerolog.Logger,
	config DetectorConfig,
) CollaborationDetector {
	config.applyDefaults()
	return &collaborationDetector{
		answers: answers,
		devices: devices,
		pairs:   pairs,
		state:   state,
		logger:  logger.With().Str("component", "collaboration_detector").Logger(),
		config:  config,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (d *collaborationDetector) OnNewAnswer(ctx context.Context, answer *models.Answer) []models.CollaborationSignal {
	return d.Detect(ctx, answer).Signals
}

type check struct {
	name string
	run  func(ctx context.Context, answer *models.Answer) ([]models.CollaborationSignal, error)
}

func (d *collaborationDetector) checks() []check {
	return []check{
		{name: CheckAnswerSimilarity, run: d.checkAnswerSimilarity},
		{name: CheckSimultaneity, run: d.checkSimultaneity},
		{name: CheckTimingCorrelation, run: d.checkTimingCorrelation},
		{name: CheckSharedOrigin, run: d.checkSharedOrigin},
	}
}

// Detect runs the four checks concurrently, each under its own timeout.
// A failing check never prevents the others from reporting.
func (d *collaborationDetector) Detect(ctx context.Context, answer *models.Answer) Report {
	checks := d.checks()

	if err := validateAnswer(answer); err != nil {
		d.logger.Error().Err(err).Msg("Collaboration detection rejected answer")
		skipped := make([]string, len(checks))
		for i, c := range checks {
			skipped[i] = c.name
		}
		return Report{Signals: []models.CollaborationSignal{}, Skipped: skipped}
	}

	if answer.SubmittedAt.IsZero() {
		answer.SubmittedAt = d.now()
	}

	type outcome struct {
		signals []models.CollaborationSignal
		err     error
	}
	outcomes := make([]outcome, len(checks))

	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c check) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i].err = fmt.Errorf("check panicked: %v", r)
				}
			}()

			checkCtx, cancel := context.WithTimeout(ctx, d.config.CheckTimeout)
			defer cancel()

			signals, err := c.run(checkCtx, answer)
			if err == nil && checkCtx.Err() != nil {
				err = checkCtx.Err()
			}
			outcomes[i] = outcome{signals: signals, err: err}
		}(i, c)
	}
	wg.Wait()

	report := Report{Signals: []models.CollaborationSignal{}}
	for i, c := range checks {
		out := outcomes[i]
		if out.err != nil {
			d.logger.Warn().Err(out.err).
				Str("check", c.name).
				Str("answer_id", answer.ID).
				Int("partial_signals", len(out.signals)).
				Msg("Collaboration check degraded")
			report.Skipped = append(report.Skipped, c.name)
		}
		sortSignals(out.signals)
		report.Signals = append(report.Signals, out.signals...)
	}

	if len(report.Signals) > 0 {
		d.logger.Info().
			Str("answer_id", answer.ID).
			Str("assessment_id", answer.AssessmentID).
			Int("signals", len(report.Signals)).
			Msg("Collaboration signals detected")
	}

	return report
}

func validateAnswer(answer *models.Answer) error {
	if answer == nil {
		return fmt.Errorf("answer is nil")
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
			return fmt.Errorf("%s is required", r.field)
		}
	}
	return nil
}

// newSignal builds a signal with sorted participant and attempt sets.
func (d *collaborationDetector) newSignal(
	answer *models.Answer,
	signalType models.SignalType,
	score float64,
	participants, attempts []string,
	windowStart, windowEnd time.Time,
	evidence models.JSONB,
) models.CollaborationSignal {
	return models.CollaborationSignal{
		ID:               uuid.New().String(),
		AssessmentID:     answer.AssessmentID,
		QuestionID:       answer.QuestionID,
		Type:             signalType,
		Score:            score,
		Severity:         SeverityFor(score),
		Participants:     models.StringList(sortedUnique(participants)),
		AttemptIDs:       models.StringList(sortedUnique(attempts)),
		WindowStart:      windowStart.UTC(),
		WindowEnd:        windowEnd.UTC(),
		Evidence:         evidence,
		ResolutionStatus: models.ResolutionOpen,
		CreatedAt:        d.now(),
	}
}

// firstEmission de-duplicates a signal within the cooldown. The severity is
// part of the key so an escalation is reported again.
func (d *collaborationDetector) firstEmission(ctx context.Context, signalType models.SignalType, assessmentID string, severity models.Severity, parts ...string) bool {
	keyParts := append([]string{"emit", signalType.String(), assessmentID}, parts...)
	keyParts = append(keyParts, severity.String())
	return d.state.FirstEmission(ctx, cache.Key(keyParts...), d.config.SignalCooldown)
}

func sortedUnique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func sortSignals(signals []models.CollaborationSignal) {
	sort.SliceStable(signals, func(i, j int) bool {
		return strings.Join(signals[i].Participants, ",") < strings.Join(signals[j].Participants, ",")
	})
}
