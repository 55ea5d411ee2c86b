package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

type DeviceRepository interface {
	Create(ctx context.Context, record *models.DeviceRecord) error
	ListSince(ctx context.Context, assessmentID string, since time.Time) ([]models.DeviceRecord, error)
}

type deviceRepository struct {
	*SQLRepository
}

func NewDeviceRepository(db *sqlx.DB, logger zerolog.Logger) DeviceRepository {
	return &deviceRepository{
		SQLRepository: NewSQLRepository(db, logger),
	}
}

func (r *deviceRepository) Create(ctx context.Context, record *models.DeviceRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = utcNow()
	}

	query := `
		INSERT INTO device_records (
			id, assessment_id, participant_id, attempt_id, network_origin,
			client_fingerprint, user_agent, login_at, created_at
		) VALUES (
			:id, :assessment_id, :participant_id, :attempt_id, :network_origin,
			:client_fingerprint, :user_agent, :login_at, :created_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("failed to create device record: %w", err)
	}
	return nil
}

func (r *deviceRepository) ListSince(ctx context.Context, assessmentID string, since time.Time) ([]models.DeviceRecord, error) {
	query := r.rebind(`
		SELECT id, assessment_id, participant_id, attempt_id, network_origin,
			client_fingerprint, user_agent, login_at, created_at
		FROM device_records
		WHERE assessment_id = ? AND login_at >= ?
		ORDER BY login_at, id
	`)

	var records []models.DeviceRecord
	if err := r.db.SelectContext(ctx, &records, query, assessmentID, since.UTC()); err != nil {
		return nil, fmt.Errorf("failed to list device records: %w", err)
	}
	return records, nil
}
