package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

const defaultListLimit = 100

type SignalRepository interface {
	Create(ctx context.Context, signal *models.CollaborationSignal) error
	GetByID(ctx context.Context, id string) (*models.CollaborationSignal, error)
	ListByAssessment(ctx context.Context, assessmentID string, filter models.SignalFilter) ([]models.CollaborationSignal, error)
	Resolve(ctx context.Context, id string, status models.ResolutionStatus, resolvedBy, notes string, at time.Time) (bool, error)
	CountBySeveritySince(ctx context.Context, assessmentID string, since time.Time) (map[models.Severity]int64, error)
}

type signalRepository struct {
	*SQLRepository
}

func NewSignalRepository(db *sqlx.DB, logger zerolog.Logger) SignalRepository {
	return &signalRepository{
		SQLRepository: NewSQLRepository(db, logger),
	}
}

const signalColumns = `id, assessment_id, question_id, signal_type, score, severity, participants,
	attempt_ids, window_start, window_end, evidence, resolution_status, resolved_by,
	resolution_notes, resolved_at, created_at`

func (r *signalRepository) Create(ctx context.Context, signal *models.CollaborationSignal) error {
	if signal.CreatedAt.IsZero() {
		signal.CreatedAt = utcNow()
	}
	if signal.ResolutionStatus == "" {
		signal.ResolutionStatus = models.ResolutionOpen
	}

	query := `
		INSERT INTO collaboration_signals (` + signalColumns + `)
		VALUES (
			:id, :assessment_id, :question_id, :signal_type, :score, :severity, :participants,
			:attempt_ids, :window_start, :window_end, :evidence, :resolution_status, :resolved_by,
			:resolution_notes, :resolved_at, :created_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, signal); err != nil {
		return fmt.Errorf("failed to create signal: %w", err)
	}
	return nil
}

func (r *signalRepository) GetByID(ctx context.Context, id string) (*models.CollaborationSignal, error) {
	query := r.rebind(`SELECT ` + signalColumns + ` FROM collaboration_signals WHERE id = ?`)

	var signal models.CollaborationSignal
	if err := r.db.GetContext(ctx, &signal, query, id); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get signal: %w", err)
	}
	return &signal, nil
}

func (r *signalRepository) ListByAssessment(ctx context.Context, assessmentID string, filter models.SignalFilter) ([]models.CollaborationSignal, error) {
	conditions := []string{"assessment_id = ?"}
	args := []interface{}{assessmentID}

	if filter.Type != "" {
		conditions = append(conditions, "signal_type = ?")
		args = append(args, filter.Type)
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)

	query := r.rebind(`
		SELECT ` + signalColumns + `
		FROM collaboration_signals
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY created_at DESC, id
		LIMIT ?
	`)

	signals := []models.CollaborationSignal{}
	if err := r.db.SelectContext(ctx, &signals, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	return signals, nil
}

// Resolve reports false when no signal has the id.
func (r *signalRepository) Resolve(ctx context.Context, id string, status models.ResolutionStatus, resolvedBy, notes string, at time.Time) (bool, error) {
	query := r.rebind(`
		UPDATE collaboration_signals
		SET resolution_status = ?, resolved_by = ?, resolution_notes = ?, resolved_at = ?
		WHERE id = ?
	`)

	result, err := r.db.ExecContext(ctx, query, status, resolvedBy, notes, at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve signal: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

// CountBySeveritySince counts signals created at or after since. An empty
// assessmentID counts across all assessments.
func (r *signalRepository) CountBySeveritySince(ctx context.Context, assessmentID string, since time.Time) (map[models.Severity]int64, error) {
	query := `SELECT severity, COUNT(*) AS total FROM collaboration_signals WHERE created_at >= ?`
	args := []interface{}{since.UTC()}
	if assessmentID != "" {
		query += ` AND assessment_id = ?`
		args = append(args, assessmentID)
	}
	query += ` GROUP BY severity`

	var rows []struct {
		Severity models.Severity `db:"severity"`
		Total    int64           `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to count signals: %w", err)
	}

	counts := map[models.Severity]int64{
		models.SeverityInfo: 0,
		models.SeverityWarn: 0,
		models.SeverityHigh: 0,
	}
	for _, row := range rows {
		counts[row.Severity] = row.Total
	}
	return counts, nil
}
