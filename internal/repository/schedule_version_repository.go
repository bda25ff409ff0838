package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// ScheduleVersionRepository provides persistence for timetable version records.
type ScheduleVersionRepository struct {
	db *sqlx.DB
}

// NewScheduleVersionRepository creates a new schedule version repository.
func NewScheduleVersionRepository(db *sqlx.DB) *ScheduleVersionRepository {
	return &ScheduleVersionRepository{db: db}
}

// CreateVersioned stores a new version record, assigning the next version
// number for the schedule. Runs inside the caller's transaction so the
// version and its sessions commit together.
func (r *ScheduleVersionRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, version *models.ScheduleVersion) error {
	if exec == nil {
		exec = r.db
	}
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	version.CreatedAt = now
	version.UpdatedAt = now

	var next int
	if err := sqlx.GetContext(ctx, exec, &next, `SELECT COALESCE(MAX(version), 0) + 1 FROM schedule_versions WHERE schedule_id = $1`, version.ScheduleID); err != nil {
		return fmt.Errorf("next schedule version: %w", err)
	}
	version.Version = next

	const query = `INSERT INTO schedule_versions (id, schedule_id, version, status, meta, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := exec.ExecContext(ctx, query, version.ID, version.ScheduleID, version.Version, version.Status, version.Meta, version.CreatedAt, version.UpdatedAt); err != nil {
		return fmt.Errorf("create schedule version: %w", err)
	}
	return nil
}

// ListBySchedule returns the version history for a schedule, newest first.
func (r *ScheduleVersionRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.ScheduleVersion, error) {
	const query = `SELECT id, schedule_id, version, status, meta, created_at, updated_at FROM schedule_versions WHERE schedule_id = $1 ORDER BY version DESC`
	var versions []models.ScheduleVersion
	if err := r.db.SelectContext(ctx, &versions, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list schedule versions: %w", err)
	}
	return versions, nil
}

// UpdateStatus moves a version through its lifecycle. Publishing a version
// archives any previously published one for the same schedule.
func (r *ScheduleVersionRepository) UpdateStatus(ctx context.Context, id string, status models.ScheduleVersionStatus) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin version status update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if status == models.ScheduleVersionPublished {
		if _, err = tx.ExecContext(ctx, `UPDATE schedule_versions SET status = $1, updated_at = NOW() WHERE status = $2 AND schedule_id = (SELECT schedule_id FROM schedule_versions WHERE id = $3)`, models.ScheduleVersionArchived, models.ScheduleVersionPublished, id); err != nil {
			err = fmt.Errorf("archive published version: %w", err)
			return err
		}
	}
	if _, err = tx.ExecContext(ctx, `UPDATE schedule_versions SET status = $1, updated_at = NOW() WHERE id = $2`, status, id); err != nil {
		err = fmt.Errorf("update version status: %w", err)
		return err
	}
	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit version status update: %w", err)
		return err
	}
	return nil
}
