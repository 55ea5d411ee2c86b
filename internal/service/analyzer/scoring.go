package analyzer

import (
	"math"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/pkg/similarity"
)

// Fusion weights. They sum to 1 so the fused score stays in [0,1].
const (
	WeightCosine  = 0.40
	WeightJaccard = 0.25
	WeightEdit    = 0.20
	WeightNGram   = 0.15
)

// Risk tier lower bounds, inclusive.
const (
	DefaultCriticalThreshold = 0.75
	DefaultHighThreshold     = 0.60
	DefaultMediumThreshold   = 0.40
)

// Segment classification bounds.
const (
	DefaultSegmentThreshold  = 0.6
	DefaultExactThreshold    = 0.95
	DefaultCloseThreshold    = 0.8
	DefaultParaphraseJaccard = 0.7
)

// Scores holds one value per similarity metric.
type Scores struct {
	Cosine  float64 `json:"cosine"`
	Jaccard float64 `json:"jaccard"`
	Edit    float64 `json:"edit"`
	NGram   float64 `json:"ngram"`
}

func (s Scores) values() []float64 {
	return []float64{s.Cosine, s.Jaccard, s.Edit, s.NGram}
}

// atLeast raises every metric of s to its value in other.
func (s *Scores) atLeast(other Scores) {
	s.Cosine = max(s.Cosine, other.Cosine)
	s.Jaccard = max(s.Jaccard, other.Jaccard)
	s.Edit = max(s.Edit, other.Edit)
	s.NGram = max(s.NGram, other.NGram)
}

// FuseScores combines the metrics with fixed weights. It is monotone in each
// input.
func FuseScores(s Scores) float64 {
	fused := WeightCosine*unit(s.Cosine) +
		WeightJaccard*unit(s.Jaccard) +
		WeightEdit*unit(s.Edit) +
		WeightNGram*unit(s.NGram)
	return unit(fused)
}

func RiskLevelFor(score float64) models.RiskLevel {
	switch {
	case score >= DefaultCriticalThreshold:
		return models.RiskLevelCritical
	case score >= DefaultHighThreshold:
		return models.RiskLevelHigh
	case score >= DefaultMediumThreshold:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}

// ConfidenceFor is high when the metrics agree.
func ConfidenceFor(s Scores) float64 {
	return 1 - min(similarity.Variance(s.values()), 1)
}

func IsFlagged(level models.RiskLevel) bool {
	return level == models.RiskLevelHigh || level == models.RiskLevelCritical
}

func RequiresReview(level models.RiskLevel) bool {
	return level != models.RiskLevelLow
}

// ClassifyMatch names a sentence match from its similarity and the token
// Jaccard of the two sentences.
func ClassifyMatch(sim, tokenJaccard, paraphraseJaccard float64) models.MatchType {
	switch {
	case sim >= DefaultExactThreshold:
		return models.MatchTypeExact
	case sim >= DefaultCloseThreshold && tokenJaccard >= paraphraseJaccard:
		return models.MatchTypeParaphrase
	case sim >= DefaultCloseThreshold:
		return models.MatchTypeStructural
	default:
		return models.MatchTypeSemantic
	}
}

func unit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
