package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

// AnswerRepository is the read model of submitted answers the detectors
// compare against.
type AnswerRepository interface {
	Upsert(ctx context.Context, answer *models.Answer) error
	GetByID(ctx context.Context, id string) (*models.Answer, error)
	ListByQuestionSince(ctx context.Context, assessmentID, questionID string, since time.Time, limit int) ([]models.Answer, error)
	ListByQuestionBetween(ctx context.Context, assessmentID, questionID string, from, to time.Time) ([]models.Answer, error)
	ListByAttempts(ctx context.Context, attemptIDs []string) ([]models.Answer, error)
	ListCorpus(ctx context.Context, assessmentID, questionID, excludeAnswerID, excludeParticipantID string, limit int) ([]models.CorpusEntry, error)
}

type answerRepository struct {
	*SQLRepository
}

func NewAnswerRepository(db *sqlx.DB, logger zerolog.Logger) AnswerRepository {
	return &answerRepository{
		SQLRepository: NewSQLRepository(db, logger),
	}
}

const answerColumns = `id, assessment_id, attempt_id, participant_id, question_id, question_type,
	choice_id, answer_text, submitted_at, created_at`

func (r *answerRepository) Upsert(ctx context.Context, answer *models.Answer) error {
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = utcNow()
	}

	query := `
		INSERT INTO answers (` + answerColumns + `)
		VALUES (:id, :assessment_id, :attempt_id, :participant_id, :question_id, :question_type,
			:choice_id, :answer_text, :submitted_at, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			question_type = excluded.question_type,
			choice_id = excluded.choice_id,
			answer_text = excluded.answer_text,
			submitted_at = excluded.submitted_at
	`

	if _, err := r.db.NamedExecContext(ctx, query, answer); err != nil {
		return fmt.Errorf("failed to upsert answer: %w", err)
	}
	return nil
}

func (r *answerRepository) GetByID(ctx context.Context, id string) (*models.Answer, error) {
	query := r.rebind(`SELECT ` + answerColumns + ` FROM answers WHERE id = ?`)

	var answer models.Answer
	if err := r.db.GetContext(ctx, &answer, query, id); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	return &answer, nil
}

// ListByQuestionSince returns the newest answers to a question first.
func (r *answerRepository) ListByQuestionSince(ctx context.Context, assessmentID, questionID string, since time.Time, limit int) ([]models.Answer, error) {
	query := r.rebind(`
		SELECT ` + answerColumns + `
		FROM answers
		WHERE assessment_id = ? AND question_id = ? AND submitted_at >= ?
		ORDER BY submitted_at DESC, id
		LIMIT ?
	`)

	var answers []models.Answer
	if err := r.db.SelectContext(ctx, &answers, query, assessmentID, questionID, since.UTC(), limit); err != nil {
		return nil, fmt.Errorf("failed to list answers by question: %w", err)
	}
	return answers, nil
}

func (r *answerRepository) ListByQuestionBetween(ctx context.Context, assessmentID, questionID string, from, to time.Time) ([]models.Answer, error) {
	query := r.rebind(`
		SELECT ` + answerColumns + `
		FROM answers
		WHERE assessment_id = ? AND question_id = ? AND submitted_at >= ? AND submitted_at <= ?
		ORDER BY submitted_at, id
	`)

	var answers []models.Answer
	if err := r.db.SelectContext(ctx, &answers, query, assessmentID, questionID, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("failed to list answers in window: %w", err)
	}
	return answers, nil
}

func (r *answerRepository) ListByAttempts(ctx context.Context, attemptIDs []string) ([]models.Answer, error) {
	if len(attemptIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT `+answerColumns+`
		FROM answers
		WHERE attempt_id IN (?)
		ORDER BY attempt_id, question_id, submitted_at
	`, attemptIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build attempt query: %w", err)
	}

	var answers []models.Answer
	if err := r.db.SelectContext(ctx, &answers, r.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list answers by attempts: %w", err)
	}
	return answers, nil
}

// ListCorpus returns prior free-text answers to the same question, newest
// first, leaving out the answer itself and its author.
func (r *answerRepository) ListCorpus(ctx context.Context, assessmentID, questionID, excludeAnswerID, excludeParticipantID string, limit int) ([]models.CorpusEntry, error) {
	query := r.rebind(`
		SELECT id, participant_id, answer_text
		FROM answers
		WHERE assessment_id = ? AND question_id = ? AND question_type = ?
			AND id != ? AND participant_id != ? AND answer_text != ''
		ORDER BY submitted_at DESC, id
		LIMIT ?
	`)

	var corpus []models.CorpusEntry
	err := r.db.SelectContext(ctx, &corpus, query,
		assessmentID, questionID, models.QuestionTypeFreeText, excludeAnswerID, excludeParticipantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list corpus: %w", err)
	}
	return corpus, nil
}
