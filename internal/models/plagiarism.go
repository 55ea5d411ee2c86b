package models

import "time"

type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

func (rl RiskLevel) String() string {
	return string(rl)
}

type MatchType string

const (
	MatchTypeExact      MatchType = "exact"
	MatchTypeParaphrase MatchType = "paraphrase"
	MatchTypeStructural MatchType = "structural"
	MatchTypeSemantic   MatchType = "semantic"
)

type ReviewDecision string

const (
	ReviewAccepted ReviewDecision = "accepted"
	ReviewRejected ReviewDecision = "rejected"
)

func (rd ReviewDecision) Valid() bool {
	return rd == ReviewAccepted || rd == ReviewRejected
}

// PlagiarismAnalysis is the verdict for one (attempt, question, answer).
// Only the review fields change after it is written.
type PlagiarismAnalysis struct {
	ID               string            `json:"id" db:"id"`
	AnswerID         string            `json:"answer_id" db:"answer_id"`
	AttemptID        string            `json:"attempt_id" db:"attempt_id"`
	QuestionID       string            `json:"question_id" db:"question_id"`
	AssessmentID     string            `json:"assessment_id" db:"assessment_id"`
	ParticipantID    string            `json:"participant_id" db:"participant_id"`
	CosineScore      float64           `json:"cosine_score" db:"cosine_score"`
	JaccardScore     float64           `json:"jaccard_score" db:"jaccard_score"`
	EditScore        float64           `json:"edit_score" db:"edit_score"`
	NGramScore       float64           `json:"ngram_score" db:"ngram_score"`
	OverallScore     float64           `json:"overall_similarity_score" db:"overall_score"`
	RiskLevel        RiskLevel         `json:"risk_level" db:"risk_level"`
	Confidence       float64           `json:"confidence" db:"confidence"`
	IsFlagged        bool              `json:"is_flagged" db:"is_flagged"`
	RequiresReview   bool              `json:"requires_review" db:"requires_review"`
	ComparedCount    int               `json:"compared_count" db:"compared_count"`
	ProcessingTimeMs int               `json:"processing_time_ms" db:"processing_time_ms"`
	ReviewDecision   *ReviewDecision   `json:"review_decision,omitempty" db:"review_decision"`
	ReviewedBy       *string           `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewNotes      *string           `json:"review_notes,omitempty" db:"review_notes"`
	ReviewedAt       *time.Time        `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	Matches          []PlagiarismMatch `json:"matches,omitempty" db:"-"`
}

// PlagiarismMatch is one matching segment between the analysed answer and a
// source answer. Offsets are byte offsets into the raw texts.
type PlagiarismMatch struct {
	ID             string    `json:"id" db:"id"`
	AnalysisID     string    `json:"analysis_id" db:"analysis_id"`
	SourceAnswerID string    `json:"source_answer_id" db:"source_answer_id"`
	TargetStart    int       `json:"target_start" db:"target_start"`
	TargetEnd      int       `json:"target_end" db:"target_end"`
	SourceStart    int       `json:"source_start" db:"source_start"`
	SourceEnd      int       `json:"source_end" db:"source_end"`
	MatchedText    string    `json:"matched_text" db:"matched_text"`
	SourceText     string    `json:"source_text" db:"source_text"`
	MatchType      MatchType `json:"match_type" db:"match_type"`
	Algorithm      string    `json:"algorithm" db:"algorithm"`
	Confidence     float64   `json:"confidence" db:"confidence"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
