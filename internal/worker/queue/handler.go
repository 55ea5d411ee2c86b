package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

const TypeAnswerSubmitted = "answer.submitted"

// ErrMalformedMessage marks a message that can never be processed.
var ErrMalformedMessage = errors.New("malformed message")

type envelope struct {
	Type string `json:"type"`
}

// DecodeAnswerSubmitted parses an answer.submitted event. Messages may carry a
// "type" field; when present it must name this event.
func DecodeAnswerSubmitted(body []byte) (*models.AnswerSubmittedEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type != "" && env.Type != TypeAnswerSubmitted {
		return nil, fmt.Errorf("%w: unexpected message type %q", ErrMalformedMessage, env.Type)
	}

	var event models.AnswerSubmittedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal answer event: %v", ErrMalformedMessage, err)
	}
	if strings.TrimSpace(event.AttemptID) == "" || strings.TrimSpace(event.QuestionID) == "" {
		return nil, fmt.Errorf("%w: attempt_id and question_id are required", ErrMalformedMessage)
	}
	return &event, nil
}
