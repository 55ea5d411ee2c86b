package models

import "time"

// AnswerSubmittedEvent is published by the exam-taking subsystem on
// submit_answer.
type AnswerSubmittedEvent struct {
	AnswerID      string       `json:"answer_id"`
	AssessmentID  string       `json:"assessment_id"`
	AttemptID     string       `json:"attempt_id"`
	ParticipantID string       `json:"participant_id"`
	QuestionID    string       `json:"question_id"`
	QuestionType  QuestionType `json:"question_type"`
	ChoiceID      string       `json:"choice_id,omitempty"`
	Text          string       `json:"text,omitempty"`
	Timestamp     int64        `json:"timestamp"`
}

func (e *AnswerSubmittedEvent) ToAnswer() *Answer {
	answer := &Answer{
		ID:            e.AnswerID,
		AssessmentID:  e.AssessmentID,
		AttemptID:     e.AttemptID,
		ParticipantID: e.ParticipantID,
		QuestionID:    e.QuestionID,
		QuestionType:  e.QuestionType,
		ChoiceID:      e.ChoiceID,
		Text:          e.Text,
	}
	if e.Timestamp > 0 {
		answer.SubmittedAt = time.UnixMilli(e.Timestamp).UTC()
	}
	return answer
}

// SignalNotification is the stable schema pushed to the per-assessment
// monitoring channel.
type SignalNotification struct {
	SignalID     string     `json:"signal_id"`
	Type         SignalType `json:"type"`
	Severity     Severity   `json:"severity"`
	Score        float64    `json:"score"`
	Participants []string   `json:"participants"`
	CreatedAt    time.Time  `json:"created_at"`
	Evidence     JSONB      `json:"evidence"`
}

func NewSignalNotification(s *CollaborationSignal) SignalNotification {
	participants := []string(s.Participants)
	if participants == nil {
		participants = []string{}
	}
	evidence := s.Evidence
	if evidence == nil {
		evidence = JSONB{}
	}
	return SignalNotification{
		SignalID:     s.ID,
		Type:         s.Type,
		Severity:     s.Severity,
		Score:        s.Score,
		Participants: participants,
		CreatedAt:    s.CreatedAt,
		Evidence:     evidence,
	}
}
