package models

import "time"

// AttemptSimilarityRecord memoizes the co-answer comparison of two attempts.
// AttemptA is always the lexically smaller id.
type AttemptSimilarityRecord struct {
	ID              string          `json:"id" db:"id"`
	AssessmentID    string          `json:"assessment_id" db:"assessment_id"`
	AttemptA        string          `json:"attempt_a" db:"attempt_a"`
	AttemptB        string          `json:"attempt_b" db:"attempt_b"`
	Score           float64         `json:"score" db:"score"`
	SharedCount     int             `json:"shared_count" db:"shared_count"`
	MatchCount      int             `json:"match_count" db:"match_count"`
	QuestionMatches QuestionMatches `json:"question_matches" db:"question_matches"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// CanonicalPair orders two attempt ids the way they are stored.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Recount derives SharedCount, MatchCount and Score from QuestionMatches.
func (r *AttemptSimilarityRecord) Recount() {
	r.SharedCount = len(r.QuestionMatches)
	r.MatchCount = 0
	for _, matched := range r.QuestionMatches {
		if matched {
			r.MatchCount++
		}
	}
	if r.SharedCount == 0 {
		r.Score = 0
		return
	}
	r.Score = float64(r.MatchCount) / float64(r.SharedCount)
}
