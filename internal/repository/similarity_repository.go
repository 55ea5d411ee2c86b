package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

type SimilarityRepository interface {
	Get(ctx context.Context, assessmentID, attemptA, attemptB string) (*models.AttemptSimilarityRecord, error)
	Merge(ctx context.Context, assessmentID, attemptA, attemptB string, matches models.QuestionMatches) (*models.AttemptSimilarityRecord, error)
}

type similarityRepository struct {
	*SQLRepository
}

func NewSimilarityRepository(db *sqlx.DB, logger zerolog.Logger) SimilarityRepository {
	return &similarityRepository{
		SQLRepository: NewSQLRepository(db, logger),
	}
}

// Get accepts the attempt ids in either order.
func (r *similarityRepository) Get(ctx context.Context, assessmentID, attemptA, attemptB string) (*models.AttemptSimilarityRecord, error) {
	a, b := models.CanonicalPair(attemptA, attemptB)

	query := r.rebind(`
		SELECT id, assessment_id, attempt_a, attempt_b, score, shared_count, match_count,
			question_matches, created_at, updated_at
		FROM attempt_similarity
		WHERE assessment_id = ? AND attempt_a = ? AND attempt_b = ?
	`)

	var record models.AttemptSimilarityRecord
	if err := r.db.GetContext(ctx, &record, query, assessmentID, a, b); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attempt similarity: %w", err)
	}
	return &record, nil
}

// Merge folds matches into the pair's stored record in one transaction and
// returns the merged result. Questions absent from matches keep their stored
// value, so concurrent writers of the same pair never drop each other's
// entries. The row is locked on postgres; sqlite runs a single writer.
func (r *similarityRepository) Merge(ctx context.Context, assessmentID, attemptA, attemptB string, matches models.QuestionMatches) (*models.AttemptSimilarityRecord, error) {
	if attemptA == attemptB {
		return nil, fmt.Errorf("attempt similarity requires two distinct attempts")
	}
	a, b := models.CanonicalPair(attemptA, attemptB)
	now := utcNow()

	var record models.AttemptSimilarityRecord
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		insert := r.rebind(`
			INSERT INTO attempt_similarity (id, assessment_id, attempt_a, attempt_b, question_matches, created_at, updated_at)
			VALUES (?, ?, ?, ?, '{}', ?, ?)
			ON CONFLICT (assessment_id, attempt_a, attempt_b) DO NOTHING
		`)
		if _, err := tx.ExecContext(ctx, insert, uuid.New().String(), assessmentID, a, b, now, now); err != nil {
			return fmt.Errorf("failed to create attempt similarity: %w", err)
		}

		query := `
			SELECT id, assessment_id, attempt_a, attempt_b, score, shared_count, match_count,
				question_matches, created_at, updated_at
			FROM attempt_similarity
			WHERE assessment_id = ? AND attempt_a = ? AND attempt_b = ?
		`
		if r.db.DriverName() == "postgres" {
			query += " FOR UPDATE"
		}
		if err := tx.GetContext(ctx, &record, r.rebind(query), assessmentID, a, b); err != nil {
			return fmt.Errorf("failed to lock attempt similarity: %w", err)
		}

		if record.QuestionMatches == nil {
			record.QuestionMatches = models.QuestionMatches{}
		}
		for questionID, matched := range matches {
			record.QuestionMatches[questionID] = matched
		}
		record.Recount()
		record.UpdatedAt = now

		update := r.rebind(`
			UPDATE attempt_similarity
			SET score = ?, shared_count = ?, match_count = ?, question_matches = ?, updated_at = ?
			WHERE id = ?
		`)
		if _, err := tx.ExecContext(ctx, update,
			record.Score, record.SharedCount, record.MatchCount, record.QuestionMatches, record.UpdatedAt, record.ID,
		); err != nil {
			return fmt.Errorf("failed to update attempt similarity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}
