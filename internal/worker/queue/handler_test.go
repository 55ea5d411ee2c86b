package queue

import (
	"errors"
	"testing"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

func TestDecodeAnswerSubmitted(t *testing.T) {
	event, err := DecodeAnswerSubmitted([]byte(`{
		"type": "answer.submitted",
		"answer_id": "ans-1",
		"assessment_id": "exam-1",
		"attempt_id": "att-1",
		"participant_id": "p1",
		"question_id": "q1",
		"question_type": "multiple_choice",
		"choice_id": "B",
		"timestamp": 1718445600000
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	answer := event.ToAnswer()
	if answer.QuestionType != models.QuestionTypeMultipleChoice || answer.ChoiceID != "B" {
		t.Fatalf("unexpected answer %+v", answer)
	}
	if answer.SubmittedAt.UnixMilli() != 1718445600000 {
		t.Fatalf("expected millisecond timestamp, got %v", answer.SubmittedAt)
	}
}

func TestDecodeAnswerSubmittedRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{answer`},
		{"other event", `{"type": "attempt.closed", "attempt_id": "att-1", "question_id": "q1"}`},
		{"missing question", `{"attempt_id": "att-1"}`},
		{"bad field type", `{"attempt_id": "att-1", "question_id": "q1", "timestamp": "yesterday"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAnswerSubmitted([]byte(tt.body))
			if !errors.Is(err, ErrMalformedMessage) {
				t.Fatalf("expected ErrMalformedMessage, got %v", err)
			}
		})
	}
}
