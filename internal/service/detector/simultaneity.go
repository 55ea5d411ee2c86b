package detector

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/cache"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

// checkSimultaneity looks for other attempts answering the same question
// within a few seconds. One coincidence is weak evidence; the counter per
// participant group turns recurrences into a score.
func (d *collaborationDetector) checkSimultaneity(ctx context.Context, answer *models.Answer) ([]models.CollaborationSignal, error) {
	from := answer.SubmittedAt.Add(-d.config.SimultaneityWindow)
	to := answer.SubmittedAt.Add(d.config.SimultaneityWindow)

	nearby, err := d.answers.ListByQuestionBetween(ctx, answer.AssessmentID, answer.QuestionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load nearby answers: %w", err)
	}

	participants := []string{answer.ParticipantID}
	attempts := []string{answer.AttemptID}
	for _, n := range nearby {
		if n.ID == answer.ID || n.AttemptID == answer.AttemptID {
			continue
		}
		participants = append(participants, n.ParticipantID)
		attempts = append(attempts, n.AttemptID)
	}

	group := sortedUnique(participants)
	if len(group) < 2 {
		return nil, nil
	}

	key := cache.Key("simul", answer.AssessmentID, strings.Join(group, ","))
	count := d.state.IncrementCounter(ctx, key, d.config.SimilarityWindow)
	score := math.Min(1, float64(count)/DefaultSimultaneityRecurrences)

	return []models.CollaborationSignal{d.newSignal(
		answer,
		models.SignalTypeSimultaneous,
		score,
		group,
		attempts,
		from, to,
		models.JSONB{
			"occurrences":    count,
			"window_seconds": d.config.SimultaneityWindow.Seconds(),
			"question_id":    answer.QuestionID,
		},
	)}, nil
}
