package detector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

// checkSharedOrigin scores every network origin the answering participant
// used recently by how alike the client fingerprints behind it are. A lab of
// mixed machines scores low; identical setups score high.
func (d *collaborationDetector) checkSharedOrigin(ctx context.Context, answer *models.Answer) ([]models.CollaborationSignal, error) {
	since := answer.SubmittedAt.Add(-d.config.SimilarityWindow)
	records, err := d.devices.ListSince(ctx, answer.AssessmentID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load device records: %w", err)
	}

	// origin -> participant -> latest fingerprint
	byOrigin := make(map[string]map[string]string)
	attemptsByParticipant := make(map[string]string)
	mine := make(map[string]struct{})
	for _, r := range records {
		if r.NetworkOrigin == "" {
			continue
		}
		if r.ParticipantID == answer.ParticipantID {
			mine[r.NetworkOrigin] = struct{}{}
		}
		if byOrigin[r.NetworkOrigin] == nil {
			byOrigin[r.NetworkOrigin] = make(map[string]string)
		}
		byOrigin[r.NetworkOrigin][r.ParticipantID] = r.ClientFingerprint
		if r.AttemptID != "" {
			attemptsByParticipant[r.ParticipantID] = r.AttemptID
		}
	}

	origins := make([]string, 0, len(mine))
	for origin := range mine {
		origins = append(origins, origin)
	}
	sort.Strings(origins)

	var signals []models.CollaborationSignal
	for _, origin := range origins {
		fingerprints := byOrigin[origin]
		if len(fingerprints) < 2 {
			continue
		}

		score, dominant := homogeneity(fingerprints)
		participants := make([]string, 0, len(fingerprints))
		attempts := make([]string, 0, len(fingerprints))
		for p := range fingerprints {
			participants = append(participants, p)
			attempts = append(attempts, attemptsByParticipant[p])
		}
		participants = sortedUnique(participants)

		severity := SeverityFor(score)
		if !d.firstEmission(ctx, models.SignalTypeSharedOrigin, answer.AssessmentID, severity, origin, strings.Join(participants, ",")) {
			continue
		}

		signals = append(signals, d.newSignal(
			answer,
			models.SignalTypeSharedOrigin,
			score,
			participants,
			attempts,
			since, answer.SubmittedAt,
			models.JSONB{
				"network_origin":       origin,
				"participants":         len(participants),
				"dominant_fingerprint": dominant,
				"homogeneity":          score,
			},
		))
	}

	return signals, nil
}

// homogeneity is the share of participants behind the most common
// fingerprint. An empty fingerprint never matches another.
func homogeneity(fingerprints map[string]string) (float64, string) {
	counts := make(map[string]int)
	for _, fp := range fingerprints {
		if fp != "" {
			counts[fp]++
		}
	}

	best, dominant := 1, ""
	for fp, c := range counts {
		if c > best || (c == best && dominant != "" && fp < dominant) {
			best, dominant = c, fp
		}
	}
	return float64(best) / float64(len(fingerprints)), dominant
}
