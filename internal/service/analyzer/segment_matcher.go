package analyzer

import (
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/pkg/similarity"
)

// segmentMatches pairs every target sentence with its most similar sentence
// of the source answer and keeps pairs at or above the segment threshold.
func (a *plagiarismAnalyzer) segmentMatches(targetSentences []similarity.Span, source models.CorpusEntry) []models.PlagiarismMatch {
	sourceSentences := similarity.Sentences(source.Text)
	if len(targetSentences) == 0 || len(sourceSentences) == 0 {
		return nil
	}

	var matches []models.PlagiarismMatch
	for _, ts := range targetSentences {
		best, bestSim := -1, 0.0
		for j, ss := range sourceSentences {
			sim := a.safeMetric("sentence_cosine", func() float64 {
				return a.metrics.cosine(ts.Text, ss.Text)
			})
			if sim > bestSim {
				best, bestSim = j, sim
			}
		}
		if best < 0 || bestSim < a.config.SegmentThreshold {
			continue
		}

		ss := sourceSentences[best]
		tokenJaccard := 0.0
		if bestSim >= DefaultCloseThreshold && bestSim < DefaultExactThreshold {
			tokenJaccard = a.safeMetric("sentence_jaccard", func() float64 {
				return a.metrics.jaccard(similarity.TokenSet(ts.Text), similarity.TokenSet(ss.Text))
			})
		}

		matches = append(matches, models.PlagiarismMatch{
			SourceAnswerID: source.AnswerID,
			TargetStart:    ts.Start,
			TargetEnd:      ts.End,
			SourceStart:    ss.Start,
			SourceEnd:      ss.End,
			MatchedText:    ts.Text,
			SourceText:     ss.Text,
			MatchType:      ClassifyMatch(bestSim, tokenJaccard, a.config.ParaphraseJaccard),
			Algorithm:      AlgorithmCosineTFIDF,
			Confidence:     bestSim,
		})
	}
	return matches
}
