package analyzer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/pkg/similarity"
)

const (
	DefaultMaxCorpus       = 300
	DefaultMaxMatches      = 50
	DefaultAnalysisTimeout = 500 * time.Millisecond

	// MaxEditRunes bounds each side of the edit distance, which is quadratic
	// in text length.
	MaxEditRunes = 2000

	AlgorithmCosineTFIDF = "cosine_tfidf"
)

type PlagiarismAnalyzer interface {
	// Analyze scores target against every corpus entry except answerID. It
	// always returns an analysis; failures degrade individual metrics to 0 and
	// running past the analysis timeout yields the maxima seen so far.
	Analyze(ctx context.Context, target string, corpus []models.CorpusEntry, answerID string) *models.PlagiarismAnalysis
}

type AnalyzerConfig struct {
	MaxCorpus         int
	MaxMatches        int
	SegmentThreshold  float64
	ParaphraseJaccard float64
	AnalysisTimeout   time.Duration
}

// metricSet lets tests substitute a failing metric.
type metricSet struct {
	cosine  func(a, b string) float64
	jaccard func(a, b map[string]struct{}) float64
	edit    func(a, b string) float64
	ngram   func(a, b string, n int) float64
}

var defaultMetrics = metricSet{
	cosine:  similarity.CosineTFIDF,
	jaccard: similarity.Jaccard,
	edit:    similarity.EditSimilarity,
	ngram:   similarity.NGramOverlap,
}

type plagiarismAnalyzer struct {
	logger  zerolog.Logger
	config  AnalyzerConfig
	metrics metricSet
}

func NewPlagiarismAnalyzer(logger zerolog.Logger, config AnalyzerConfig) PlagiarismAnalyzer {
	if config.MaxCorpus <= 0 {
		config.MaxCorpus = DefaultMaxCorpus
	}
	if config.MaxMatches <= 0 {
		config.MaxMatches = DefaultMaxMatches
	}
	if config.SegmentThreshold <= 0 {
		config.SegmentThreshold = DefaultSegmentThreshold
	}
	if config.ParaphraseJaccard <= 0 {
		config.ParaphraseJaccard = DefaultParaphraseJaccard
	}
	if config.AnalysisTimeout <= 0 {
		config.AnalysisTimeout = DefaultAnalysisTimeout
	}

	return &plagiarismAnalyzer{
		logger:  logger.With().Str("component", "plagiarism_analyzer").Logger(),
		config:  config,
		metrics: defaultMetrics,
	}
}

func (a *plagiarismAnalyzer) Analyze(ctx context.Context, target string, corpus []models.CorpusEntry, answerID string) (analysis *models.PlagiarismAnalysis) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, a.config.AnalysisTimeout)
	defer cancel()

	var maxima Scores
	analysis = &models.PlagiarismAnalysis{
		AnswerID:   answerID,
		RiskLevel:  models.RiskLevelLow,
		Confidence: 1,
		Matches:    []models.PlagiarismMatch{},
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Str("answer_id", answerID).
				Interface("panic", r).
				Msg("Plagiarism analysis aborted, returning partial verdict")
		}
		a.finish(analysis, maxima, startTime)
	}()

	normalizedTarget := similarity.Normalize(target)
	if normalizedTarget == "" {
		return analysis
	}
	targetTokens := similarity.TokenSet(normalizedTarget)
	targetSentences := similarity.Sentences(target)
	editTarget := truncateRunes(normalizedTarget, MaxEditRunes)

	for _, entry := range corpus {
		if entry.AnswerID == answerID {
			continue
		}
		if analysis.ComparedCount >= a.config.MaxCorpus {
			a.logger.Debug().
				Str("answer_id", answerID).
				Int("max_corpus", a.config.MaxCorpus).
				Msg("Corpus cap reached")
			break
		}
		if err := ctx.Err(); err != nil {
			a.logger.Warn().Err(err).
				Str("answer_id", answerID).
				Int("compared", analysis.ComparedCount).
				Msg("Plagiarism analysis interrupted, returning partial maxima")
			break
		}

		normalizedSource := similarity.Normalize(entry.Text)
		if normalizedSource == "" {
			continue
		}
		analysis.ComparedCount++

		scores := Scores{
			Cosine: a.safeMetric("cosine_tfidf", func() float64 {
				return a.metrics.cosine(normalizedTarget, normalizedSource)
			}),
			Jaccard: a.safeMetric("jaccard", func() float64 {
				return a.metrics.jaccard(targetTokens, similarity.TokenSet(normalizedSource))
			}),
			Edit: a.safeMetric("edit_distance", func() float64 {
				return a.metrics.edit(editTarget, truncateRunes(normalizedSource, MaxEditRunes))
			}),
			NGram: a.safeMetric("ngram_overlap", func() float64 {
				return a.metrics.ngram(normalizedTarget, normalizedSource, similarity.DefaultNGramSize)
			}),
		}
		maxima.atLeast(scores)

		if scores.Cosine >= a.config.SegmentThreshold && len(analysis.Matches) < a.config.MaxMatches {
			matches := a.segmentMatches(targetSentences, entry)
			room := a.config.MaxMatches - len(analysis.Matches)
			if len(matches) > room {
				matches = matches[:room]
			}
			analysis.Matches = append(analysis.Matches, matches...)
		}
	}

	return analysis
}

func (a *plagiarismAnalyzer) finish(analysis *models.PlagiarismAnalysis, maxima Scores, startTime time.Time) {
	analysis.CosineScore = maxima.Cosine
	analysis.JaccardScore = maxima.Jaccard
	analysis.EditScore = maxima.Edit
	analysis.NGramScore = maxima.NGram
	analysis.OverallScore = FuseScores(maxima)
	analysis.RiskLevel = RiskLevelFor(analysis.OverallScore)
	analysis.Confidence = ConfidenceFor(maxima)
	analysis.IsFlagged = IsFlagged(analysis.RiskLevel)
	analysis.RequiresReview = RequiresReview(analysis.RiskLevel)
	analysis.ProcessingTimeMs = int(time.Since(startTime).Milliseconds())

	a.logger.Debug().
		Str("answer_id", analysis.AnswerID).
		Float64("overall_score", analysis.OverallScore).
		Str("risk_level", analysis.RiskLevel.String()).
		Int("compared", analysis.ComparedCount).
		Int("matches", len(analysis.Matches)).
		Msg("Plagiarism analysis finished")
}

// safeMetric turns a panicking metric into a zero score.
func (a *plagiarismAnalyzer) safeMetric(name string, fn func() float64) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn().
				Str("metric", name).
				Interface("panic", r).
				Msg("Similarity metric failed, scoring 0")
			score = 0
		}
	}()
	return unit(fn())
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
