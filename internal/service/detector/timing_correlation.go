package detector

import (
	"context"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/cache"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/pkg/similarity"
)

// checkTimingCorrelation correlates this attempt's inter-answer intervals
// with every other active attempt of the assessment.
func (d *collaborationDetector) checkTimingCorrelation(ctx context.Context, answer *models.Answer) ([]models.CollaborationSignal, error) {
	series := d.state.AppendTiming(ctx, answer.AttemptID, answer.SubmittedAt)
	active := d.state.TrackAttempt(ctx, answer.AssessmentID, cache.AttemptRef{
		AttemptID:     answer.AttemptID,
		ParticipantID: answer.ParticipantID,
	})

	mine := intervals(series)
	if len(mine) < d.config.MinTimingSamples {
		d.logger.Debug().
			Str("attempt_id", answer.AttemptID).
			Int("samples", len(mine)).
			Msg("Not enough timing samples for correlation")
		return nil, nil
	}

	var signals []models.CollaborationSignal
	for _, ref := range active {
		if ref.AttemptID == answer.AttemptID || ref.ParticipantID == answer.ParticipantID {
			continue
		}
		if err := ctx.Err(); err != nil {
			return signals, err
		}

		theirs := intervals(d.state.Timings(ctx, ref.AttemptID))
		n := min(len(mine), len(theirs))
		if n < d.config.MinTimingSamples {
			continue
		}

		r, ok := similarity.Pearson(mine[len(mine)-n:], theirs[len(theirs)-n:])
		if !ok || r < d.config.TimingThreshold {
			continue
		}

		severity := SeverityFor(r)
		a, b := models.CanonicalPair(answer.AttemptID, ref.AttemptID)
		if !d.firstEmission(ctx, models.SignalTypeTimingCorrelation, answer.AssessmentID, severity, a, b) {
			continue
		}

		signals = append(signals, d.newSignal(
			answer,
			models.SignalTypeTimingCorrelation,
			r,
			[]string{answer.ParticipantID, ref.ParticipantID},
			[]string{answer.AttemptID, ref.AttemptID},
			series[len(series)-n-1], answer.SubmittedAt,
			models.JSONB{
				"pearson_r": r,
				"samples":   n,
			},
		))
	}

	return signals, nil
}

// intervals returns the gaps between consecutive timestamps in seconds.
func intervals(series []time.Time) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		out[i-1] = series[i].Sub(series[i-1]).Seconds()
	}
	return out
}
