package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// SettingsRepository provides persistence for per-schedule generation settings.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetBySchedule loads the generation settings for a schedule. Returns
// sql.ErrNoRows when none are stored.
func (r *SettingsRepository) GetBySchedule(ctx context.Context, scheduleID string) (*models.GenerationSettings, error) {
	const query = `SELECT schedule_id, working_days, daily_periods, period_duration, break_periods, lunch_break_period, first_period_start, break_duration, lunch_duration FROM generation_settings WHERE schedule_id = $1`
	var settings models.GenerationSettings
	row := r.db.QueryRowxContext(ctx, query, scheduleID)
	if err := row.Scan(
		&settings.ScheduleID,
		pq.Array(&settings.WorkingDays),
		&settings.DailyPeriods,
		&settings.PeriodDuration,
		pq.Array(&settings.BreakPeriods),
		&settings.LunchBreakPeriod,
		&settings.FirstPeriodStart,
		&settings.BreakDuration,
		&settings.LunchDuration,
	); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Upsert stores generation settings, replacing any previous row for the
// schedule.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.GenerationSettings) error {
	const query = `INSERT INTO generation_settings (schedule_id, working_days, daily_periods, period_duration, break_periods, lunch_break_period, first_period_start, break_duration, lunch_duration)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (schedule_id) DO UPDATE SET
			working_days = EXCLUDED.working_days,
			daily_periods = EXCLUDED.daily_periods,
			period_duration = EXCLUDED.period_duration,
			break_periods = EXCLUDED.break_periods,
			lunch_break_period = EXCLUDED.lunch_break_period,
			first_period_start = EXCLUDED.first_period_start,
			break_duration = EXCLUDED.break_duration,
			lunch_duration = EXCLUDED.lunch_duration`
	if _, err := r.db.ExecContext(ctx, query,
		settings.ScheduleID,
		pq.Array(settings.WorkingDays),
		settings.DailyPeriods,
		settings.PeriodDuration,
		pq.Array(settings.BreakPeriods),
		settings.LunchBreakPeriod,
		settings.FirstPeriodStart,
		settings.BreakDuration,
		settings.LunchDuration,
	); err != nil {
		return fmt.Errorf("upsert generation settings: %w", err)
	}
	return nil
}
