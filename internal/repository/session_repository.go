package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// SessionRepository provides persistence for placed timetable sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = "id, schedule_id, teaching_load_id, teacher_id, subject_id, class_id, room_id, day_of_week, period_number, created_at"

// ListBySchedule returns the schedule's sessions in grid order.
func (r *SessionRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE schedule_id = $1 ORDER BY day_of_week ASC, period_number ASC, class_id ASC", sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// ListByTeachers returns sessions taught by any of the given teachers outside
// the excluded schedule. Used to seed already-committed commitments before a
// generation run.
func (r *SessionRepository) ListByTeachers(ctx context.Context, teacherIDs []string, excludeScheduleID string) ([]models.Session, error) {
	if len(teacherIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		fmt.Sprintf("SELECT %s FROM sessions WHERE teacher_id IN (?) AND schedule_id <> ? ORDER BY day_of_week ASC, period_number ASC, id ASC", sessionColumns),
		teacherIDs, excludeScheduleID,
	)
	if err != nil {
		return nil, fmt.Errorf("build teacher sessions query: %w", err)
	}
	query = r.db.Rebind(query)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions by teachers: %w", err)
	}
	return sessions, nil
}

// ReplaceForSchedule swaps a schedule's full session set inside the caller's
// transaction. Sessions without an id receive one here so repeated engine
// runs stay byte for byte identical before persistence.
func (r *SessionRepository) ReplaceForSchedule(ctx context.Context, tx *sqlx.Tx, scheduleID string, sessions []models.Session) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE schedule_id = $1`, scheduleID); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}

	now := time.Now().UTC()
	const query = `INSERT INTO sessions (id, schedule_id, teaching_load_id, teacher_id, subject_id, class_id, room_id, day_of_week, period_number, created_at) VALUES (:id, :schedule_id, :teaching_load_id, :teacher_id, :subject_id, :class_id, :room_id, :day_of_week, :period_number, :created_at)`
	for i := range sessions {
		payload := sessions[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, tx, query, &payload); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		sessions[i] = payload
	}
	return nil
}

// UpdateSlot moves one session to a new day, period and room.
func (r *SessionRepository) UpdateSlot(ctx context.Context, exec sqlx.ExtContext, sessionID string, day, period int, roomID *string) error {
	if exec == nil {
		exec = r.db
	}
	const query = `UPDATE sessions SET day_of_week = $1, period_number = $2, room_id = $3 WHERE id = $4`
	result, err := exec.ExecContext(ctx, query, day, period, roomID, sessionID)
	if err != nil {
		return fmt.Errorf("update session slot: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}

// DeleteBySchedule removes every session of a schedule.
func (r *SessionRepository) DeleteBySchedule(ctx context.Context, scheduleID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE schedule_id = $1`, scheduleID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}
