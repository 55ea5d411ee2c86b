package detector

import (
	"context"
	"fmt"
	"sort"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/pkg/similarity"
)

// checkAnswerSimilarity compares the answer with the latest answer of every
// other attempt on the same question and folds the outcome into the pair's
// memoized record. A signal needs the aggregate over all shared questions to
// cross the threshold, not a single question.
func (d *collaborationDetector) checkAnswerSimilarity(ctx context.Context, answer *models.Answer) ([]models.CollaborationSignal, error) {
	since := answer.SubmittedAt.Add(-d.config.SimilarityWindow)
	siblings, err := d.answers.ListByQuestionSince(ctx, answer.AssessmentID, answer.QuestionID, since, d.config.MaxComparisons)
	if err != nil {
		return nil, fmt.Errorf("failed to load sibling answers: %w", err)
	}

	// siblings arrive newest first, so the first answer per attempt is its latest
	latest := make(map[string]models.Answer)
	for _, s := range siblings {
		if s.AttemptID == answer.AttemptID || s.ParticipantID == answer.ParticipantID {
			continue
		}
		if _, seen := latest[s.AttemptID]; !seen {
			latest[s.AttemptID] = s
		}
	}

	attempts := make([]string, 0, len(latest))
	for id := range latest {
		attempts = append(attempts, id)
	}
	sort.Strings(attempts)

	var (
		signals  []models.CollaborationSignal
		firstErr error
	)
	for _, otherAttempt := range attempts {
		if err := ctx.Err(); err != nil {
			return signals, err
		}

		other := latest[otherAttempt]
		record, err := d.mergePair(ctx, answer, &other)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if record.SharedCount < d.config.MinSharedQuestions || record.Score < d.config.AggregateThreshold {
			continue
		}

		severity := SeverityFor(record.Score)
		if !d.firstEmission(ctx, models.SignalTypeAnswerSimilarity, answer.AssessmentID, severity, record.AttemptA, record.AttemptB) {
			continue
		}

		signals = append(signals, d.newSignal(
			answer,
			models.SignalTypeAnswerSimilarity,
			record.Score,
			[]string{answer.ParticipantID, other.ParticipantID},
			[]string{record.AttemptA, record.AttemptB},
			since, answer.SubmittedAt,
			models.JSONB{
				"shared_questions":   record.SharedCount,
				"matching_questions": record.MatchCount,
				"aggregate_score":    record.Score,
				"trigger_question":   answer.QuestionID,
			},
		))
	}

	return signals, firstErr
}

// mergePair folds this answer into the memoized record of (answer's attempt,
// other's attempt). The first sight of a pair compares every question both
// attempts answered; later sights only contribute the current question. The
// store merges per question, so concurrent submissions of the two attempts do
// not overwrite each other.
func (d *collaborationDetector) mergePair(ctx context.Context, answer, other *models.Answer) (*models.AttemptSimilarityRecord, error) {
	record, err := d.pairs.Get(ctx, answer.AssessmentID, answer.AttemptID, other.AttemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt similarity: %w", err)
	}

	var matches models.QuestionMatches
	if record == nil {
		matches, err = d.fullPass(ctx, answer, other)
		if err != nil {
			return nil, err
		}
	} else {
		matches = models.QuestionMatches{answer.QuestionID: d.sameAnswer(answer, other)}
	}

	merged, err := d.pairs.Merge(ctx, answer.AssessmentID, answer.AttemptID, other.AttemptID, matches)
	if err != nil {
		return nil, fmt.Errorf("failed to store attempt similarity: %w", err)
	}
	return merged, nil
}

func (d *collaborationDetector) fullPass(ctx context.Context, answer, other *models.Answer) (models.QuestionMatches, error) {
	all, err := d.answers.ListByAttempts(ctx, []string{answer.AttemptID, other.AttemptID})
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt answers: %w", err)
	}

	byAttempt := map[string]map[string]models.Answer{
		answer.AttemptID: {},
		other.AttemptID:  {},
	}
	for _, a := range all {
		byQuestion, ok := byAttempt[a.AttemptID]
		if !ok {
			continue
		}
		if prev, seen := byQuestion[a.QuestionID]; !seen || !a.SubmittedAt.Before(prev.SubmittedAt) {
			byQuestion[a.QuestionID] = a
		}
	}
	// the triggering pair is authoritative even if the read model lags
	byAttempt[answer.AttemptID][answer.QuestionID] = *answer
	byAttempt[other.AttemptID][other.QuestionID] = *other

	matches := models.QuestionMatches{}
	mine, theirs := byAttempt[answer.AttemptID], byAttempt[other.AttemptID]
	for questionID, a := range mine {
		b, ok := theirs[questionID]
		if !ok {
			continue
		}
		matches[questionID] = d.sameAnswer(&a, &b)
	}
	return matches, nil
}

// sameAnswer is an exact choice match for structured questions and a TF-IDF
// cosine above the match threshold for free text.
func (d *collaborationDetector) sameAnswer(a, b *models.Answer) bool {
	if a.ChoiceID != "" || b.ChoiceID != "" {
		return a.SameResponse(b)
	}
	if a.Text == "" || b.Text == "" {
		return false
	}
	return similarity.CosineTFIDF(a.Text, b.Text) >= d.config.AnswerMatchThreshold
}
