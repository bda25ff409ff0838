package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// TeachingLoadRepository provides persistence for teaching loads.
type TeachingLoadRepository struct {
	db *sqlx.DB
}

// NewTeachingLoadRepository creates a new teaching load repository.
func NewTeachingLoadRepository(db *sqlx.DB) *TeachingLoadRepository {
	return &TeachingLoadRepository{db: db}
}

const teachingLoadColumns = "id, schedule_id, teacher_id, subject_id, class_id, weekly_hours, priority_level, preferred_consecutive_hours, class_size, preferred_time_slots, unavailable_periods, ideal_distribution, constraints, created_at, updated_at"

// ListBySchedule returns every teaching load attached to a schedule, ordered
// for stable iteration.
func (r *TeachingLoadRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.TeachingLoad, error) {
	query := fmt.Sprintf("SELECT %s FROM teaching_loads WHERE schedule_id = $1 ORDER BY id ASC", teachingLoadColumns)
	var loads []models.TeachingLoad
	if err := r.db.SelectContext(ctx, &loads, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list teaching loads: %w", err)
	}
	for i := range loads {
		if err := decodeLoadJSON(&loads[i]); err != nil {
			return nil, err
		}
	}
	return loads, nil
}

// FindByID loads a single teaching load.
func (r *TeachingLoadRepository) FindByID(ctx context.Context, id string) (*models.TeachingLoad, error) {
	query := fmt.Sprintf("SELECT %s FROM teaching_loads WHERE id = $1", teachingLoadColumns)
	var load models.TeachingLoad
	if err := r.db.GetContext(ctx, &load, query, id); err != nil {
		return nil, err
	}
	if err := decodeLoadJSON(&load); err != nil {
		return nil, err
	}
	return &load, nil
}

// Create stores a teaching load, encoding the structured fields as JSON.
func (r *TeachingLoadRepository) Create(ctx context.Context, load *models.TeachingLoad) error {
	if load.ID == "" {
		load.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if load.CreatedAt.IsZero() {
		load.CreatedAt = now
	}
	load.UpdatedAt = now
	if err := encodeLoadJSON(load); err != nil {
		return err
	}

	const query = `INSERT INTO teaching_loads (id, schedule_id, teacher_id, subject_id, class_id, weekly_hours, priority_level, preferred_consecutive_hours, class_size, preferred_time_slots, unavailable_periods, ideal_distribution, constraints, created_at, updated_at) VALUES (:id, :schedule_id, :teacher_id, :subject_id, :class_id, :weekly_hours, :priority_level, :preferred_consecutive_hours, :class_size, :preferred_time_slots, :unavailable_periods, :ideal_distribution, :constraints, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, load); err != nil {
		return fmt.Errorf("create teaching load: %w", err)
	}
	return nil
}

// Delete removes a teaching load by id.
func (r *TeachingLoadRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM teaching_loads WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete teaching load: %w", err)
	}
	return nil
}

func decodeLoadJSON(load *models.TeachingLoad) error {
	if len(load.RawPreferred) > 0 {
		if err := json.Unmarshal(load.RawPreferred, &load.PreferredTimeSlots); err != nil {
			return fmt.Errorf("decode preferred time slots for load %s: %w", load.ID, err)
		}
	}
	if len(load.RawUnavailable) > 0 {
		if err := json.Unmarshal(load.RawUnavailable, &load.UnavailablePeriods); err != nil {
			return fmt.Errorf("decode unavailable periods for load %s: %w", load.ID, err)
		}
	}
	if len(load.RawDistribution) > 0 {
		if err := json.Unmarshal(load.RawDistribution, &load.IdealDistribution); err != nil {
			return fmt.Errorf("decode ideal distribution for load %s: %w", load.ID, err)
		}
	}
	if len(load.RawConstraints) > 0 {
		if err := json.Unmarshal(load.RawConstraints, &load.Constraints); err != nil {
			return fmt.Errorf("decode constraints for load %s: %w", load.ID, err)
		}
	}
	return nil
}

func encodeLoadJSON(load *models.TeachingLoad) error {
	var err error
	if load.RawPreferred, err = json.Marshal(load.PreferredTimeSlots); err != nil {
		return fmt.Errorf("encode preferred time slots: %w", err)
	}
	if load.RawUnavailable, err = json.Marshal(load.UnavailablePeriods); err != nil {
		return fmt.Errorf("encode unavailable periods: %w", err)
	}
	if load.RawDistribution, err = json.Marshal(load.IdealDistribution); err != nil {
		return fmt.Errorf("encode ideal distribution: %w", err)
	}
	if load.RawConstraints, err = json.Marshal(load.Constraints); err != nil {
		return fmt.Errorf("encode constraints: %w", err)
	}
	return nil
}
