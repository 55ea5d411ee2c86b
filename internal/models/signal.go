package models

import "time"

type SignalType string

const (
	SignalTypeAnswerSimilarity  SignalType = "answer_similarity"
	SignalTypeSimultaneous      SignalType = "simultaneous_answer"
	SignalTypeTimingCorrelation SignalType = "timing_correlation"
	SignalTypeSharedOrigin      SignalType = "shared_network_origin"
)

func (st SignalType) String() string {
	return string(st)
}

type Severity string

const (
	SeverityInfo Severity = "info"
	SeverityWarn Severity = "warn"
	SeverityHigh Severity = "high"
)

func (s Severity) String() string {
	return string(s)
}

type ResolutionStatus string

const (
	ResolutionOpen      ResolutionStatus = "open"
	ResolutionConfirmed ResolutionStatus = "confirmed"
	ResolutionDismissed ResolutionStatus = "dismissed"
)

func (rs ResolutionStatus) Valid() bool {
	switch rs {
	case ResolutionOpen, ResolutionConfirmed, ResolutionDismissed:
		return true
	}
	return false
}

// CollaborationSignal is one detection event. The detector only creates it;
// resolution fields are written back by reviewers.
type CollaborationSignal struct {
	ID               string           `json:"signal_id" db:"id"`
	AssessmentID     string           `json:"assessment_id" db:"assessment_id"`
	QuestionID       string           `json:"question_id,omitempty" db:"question_id"`
	Type             SignalType       `json:"type" db:"signal_type"`
	Score            float64          `json:"score" db:"score"`
	Severity         Severity         `json:"severity" db:"severity"`
	Participants     StringList       `json:"participants" db:"participants"`
	AttemptIDs       StringList       `json:"attempt_ids" db:"attempt_ids"`
	WindowStart      time.Time        `json:"window_start" db:"window_start"`
	WindowEnd        time.Time        `json:"window_end" db:"window_end"`
	Evidence         JSONB            `json:"evidence" db:"evidence"`
	ResolutionStatus ResolutionStatus `json:"resolution_status" db:"resolution_status"`
	ResolvedBy       *string          `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolutionNotes  *string          `json:"resolution_notes,omitempty" db:"resolution_notes"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

type SignalFilter struct {
	Type     SignalType
	Severity Severity
	Since    *time.Time
	Limit    int
}
