package models

import (
	"strings"
	"time"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeFreeText       QuestionType = "free_text"
)

func (qt QuestionType) String() string {
	return string(qt)
}

func (qt QuestionType) Valid() bool {
	switch qt {
	case QuestionTypeMultipleChoice, QuestionTypeTrueFalse, QuestionTypeFreeText:
		return true
	}
	return false
}

// Answer is one participant's response to one question within one attempt.
// Choice answers carry ChoiceID, free-text answers carry Text.
type Answer struct {
	ID            string       `json:"answer_id" db:"id"`
	AssessmentID  string       `json:"assessment_id" db:"assessment_id"`
	AttemptID     string       `json:"attempt_id" db:"attempt_id"`
	ParticipantID string       `json:"participant_id" db:"participant_id"`
	QuestionID    string       `json:"question_id" db:"question_id"`
	QuestionType  QuestionType `json:"question_type" db:"question_type"`
	ChoiceID      string       `json:"choice_id,omitempty" db:"choice_id"`
	Text          string       `json:"text,omitempty" db:"answer_text"`
	SubmittedAt   time.Time    `json:"submitted_at" db:"submitted_at"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

func (a *Answer) IsFreeText() bool {
	return a.QuestionType == QuestionTypeFreeText
}

// SameResponse reports whether both answers selected the same choice. Text
// answers are compared by the detectors, not here.
func (a *Answer) SameResponse(other *Answer) bool {
	if a.ChoiceID == "" || other.ChoiceID == "" {
		return false
	}
	return strings.EqualFold(a.ChoiceID, other.ChoiceID)
}

// CorpusEntry is one sibling answer offered to the plagiarism analyzer.
type CorpusEntry struct {
	AnswerID      string `json:"answer_id" db:"id"`
	ParticipantID string `json:"participant_id,omitempty" db:"participant_id"`
	Text          string `json:"text" db:"answer_text"`
}
