package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

type PlagiarismRepository interface {
	// Create stores the analysis with its matches. When an analysis for the
	// same (attempt, question, answer) exists, nothing is written and the
	// stored analysis is returned with created=false.
	Create(ctx context.Context, analysis *models.PlagiarismAnalysis) (stored *models.PlagiarismAnalysis, created bool, err error)
	GetByID(ctx context.Context, id string) (*models.PlagiarismAnalysis, error)
	Find(ctx context.Context, attemptID, questionID, answerID string) ([]models.PlagiarismAnalysis, error)
	ReviewQueue(ctx context.Context, limit int) ([]models.PlagiarismAnalysis, error)
	Review(ctx context.Context, id string, decision models.ReviewDecision, reviewer, notes string, at time.Time) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	CountPendingReview(ctx context.Context, assessmentID string) (int64, error)
}

type plagiarismRepository struct {
	*SQLRepository
}

func NewPlagiarismRepository(db *sqlx.DB, logger zerolog.Logger) PlagiarismRepository {
	return &plagiarismRepository{
		SQLRepository: NewSQLRepository(db, logger),
	}
}

const analysisColumns = `id, answer_id, attempt_id, question_id, assessment_id, participant_id,
	cosine_score, jaccard_score, edit_score, ngram_score, overall_score, risk_level, confidence,
	is_flagged, requires_review, compared_count, processing_time_ms, review_decision, reviewed_by,
	review_notes, reviewed_at, created_at`

const matchColumns = `id, analysis_id, source_answer_id, target_start, target_end, source_start,
	source_end, matched_text, source_text, match_type, algorithm, confidence, created_at`

func (r *plagiarismRepository) Create(ctx context.Context, analysis *models.PlagiarismAnalysis) (*models.PlagiarismAnalysis, bool, error) {
	if analysis.ID == "" {
		analysis.ID = uuid.New().String()
	}
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = utcNow()
	}

	created := false
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO plagiarism_analyses (` + analysisColumns + `)
			VALUES (
				:id, :answer_id, :attempt_id, :question_id, :assessment_id, :participant_id,
				:cosine_score, :jaccard_score, :edit_score, :ngram_score, :overall_score, :risk_level, :confidence,
				:is_flagged, :requires_review, :compared_count, :processing_time_ms, :review_decision, :reviewed_by,
				:review_notes, :reviewed_at, :created_at
			)
			ON CONFLICT (attempt_id, question_id, answer_id) DO NOTHING
		`

		result, err := tx.NamedExecContext(ctx, query, analysis)
		if err != nil {
			return fmt.Errorf("failed to insert analysis: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return nil
		}
		created = true

		for i := range analysis.Matches {
			match := &analysis.Matches[i]
			if match.ID == "" {
				match.ID = uuid.New().String()
			}
			match.AnalysisID = analysis.ID
			if match.CreatedAt.IsZero() {
				match.CreatedAt = analysis.CreatedAt
			}

			matchQuery := `
				INSERT INTO plagiarism_matches (` + matchColumns + `)
				VALUES (
					:id, :analysis_id, :source_answer_id, :target_start, :target_end, :source_start,
					:source_end, :matched_text, :source_text, :match_type, :algorithm, :confidence, :created_at
				)
			`
			if _, err := tx.NamedExecContext(ctx, matchQuery, match); err != nil {
				return fmt.Errorf("failed to insert match: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		return analysis, true, nil
	}

	existing, err := r.findOne(ctx, analysis.AttemptID, analysis.QuestionID, analysis.AnswerID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *plagiarismRepository) findOne(ctx context.Context, attemptID, questionID, answerID string) (*models.PlagiarismAnalysis, error) {
	query := r.rebind(`
		SELECT ` + analysisColumns + `
		FROM plagiarism_analyses
		WHERE attempt_id = ? AND question_id = ? AND answer_id = ?
	`)

	var analysis models.PlagiarismAnalysis
	if err := r.db.GetContext(ctx, &analysis, query, attemptID, questionID, answerID); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	if err := r.loadMatches(ctx, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *plagiarismRepository) GetByID(ctx context.Context, id string) (*models.PlagiarismAnalysis, error) {
	query := r.rebind(`SELECT ` + analysisColumns + ` FROM plagiarism_analyses WHERE id = ?`)

	var analysis models.PlagiarismAnalysis
	if err := r.db.GetContext(ctx, &analysis, query, id); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	if err := r.loadMatches(ctx, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *plagiarismRepository) loadMatches(ctx context.Context, analysis *models.PlagiarismAnalysis) error {
	query := r.rebind(`
		SELECT ` + matchColumns + `
		FROM plagiarism_matches
		WHERE analysis_id = ?
		ORDER BY target_start, source_answer_id, source_start
	`)

	matches := []models.PlagiarismMatch{}
	if err := r.db.SelectContext(ctx, &matches, query, analysis.ID); err != nil {
		return fmt.Errorf("failed to load matches: %w", err)
	}
	analysis.Matches = matches
	return nil
}

// Find filters by any non-empty id. Matches are not loaded.
func (r *plagiarismRepository) Find(ctx context.Context, attemptID, questionID, answerID string) ([]models.PlagiarismAnalysis, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if attemptID != "" {
		conditions = append(conditions, "attempt_id = ?")
		args = append(args, attemptID)
	}
	if questionID != "" {
		conditions = append(conditions, "question_id = ?")
		args = append(args, questionID)
	}
	if answerID != "" {
		conditions = append(conditions, "answer_id = ?")
		args = append(args, answerID)
	}
	if len(conditions) == 0 {
		return nil, fmt.Errorf("at least one of attempt_id, question_id, answer_id is required")
	}

	query := r.rebind(`
		SELECT ` + analysisColumns + `
		FROM plagiarism_analyses
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY created_at DESC, id
	`)

	analyses := []models.PlagiarismAnalysis{}
	if err := r.db.SelectContext(ctx, &analyses, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find analyses: %w", err)
	}
	return analyses, nil
}

// ReviewQueue lists analyses that need a reviewer, riskiest first.
func (r *plagiarismRepository) ReviewQueue(ctx context.Context, limit int) ([]models.PlagiarismAnalysis, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := r.rebind(`
		SELECT ` + analysisColumns + `
		FROM plagiarism_analyses
		WHERE requires_review = ? AND review_decision IS NULL
		ORDER BY overall_score DESC, created_at, id
		LIMIT ?
	`)

	analyses := []models.PlagiarismAnalysis{}
	if err := r.db.SelectContext(ctx, &analyses, query, true, limit); err != nil {
		return nil, fmt.Errorf("failed to list review queue: %w", err)
	}
	return analyses, nil
}

// Review records a decision once. It reports false when the analysis is
// missing or already reviewed.
func (r *plagiarismRepository) Review(ctx context.Context, id string, decision models.ReviewDecision, reviewer, notes string, at time.Time) (bool, error) {
	query := r.rebind(`
		UPDATE plagiarism_analyses
		SET review_decision = ?, reviewed_by = ?, review_notes = ?, reviewed_at = ?
		WHERE id = ? AND review_decision IS NULL
	`)

	result, err := r.db.ExecContext(ctx, query, decision, reviewer, notes, at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to review analysis: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

// Delete removes the analysis; its matches go with it.
func (r *plagiarismRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM plagiarism_analyses WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete analysis: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

func (r *plagiarismRepository) CountPendingReview(ctx context.Context, assessmentID string) (int64, error) {
	query := `SELECT COUNT(*) FROM plagiarism_analyses WHERE is_flagged = ? AND review_decision IS NULL`
	args := []interface{}{true}
	if assessmentID != "" {
		query += ` AND assessment_id = ?`
		args = append(args, assessmentID)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, r.rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to count pending reviews: %w", err)
	}
	return total, nil
}
