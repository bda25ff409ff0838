package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// ConflictRepository provides persistence for detected conflicts.
type ConflictRepository struct {
	db *sqlx.DB
}

// NewConflictRepository creates a new conflict repository.
func NewConflictRepository(db *sqlx.DB) *ConflictRepository {
	return &ConflictRepository{db: db}
}

const conflictColumns = "id, schedule_id, type, severity, status, fingerprint, description, details, suggestion, auto_detected, session_ids, detected_at, resolved_at"

func scanConflict(row sqlx.ColScanner) (models.Conflict, error) {
	var conflict models.Conflict
	err := row.Scan(
		&conflict.ID,
		&conflict.ScheduleID,
		&conflict.Type,
		&conflict.Severity,
		&conflict.Status,
		&conflict.Fingerprint,
		&conflict.Description,
		&conflict.Details,
		&conflict.Suggestion,
		&conflict.AutoDetected,
		pq.Array(&conflict.SessionIDs),
		&conflict.DetectedAt,
		&conflict.ResolvedAt,
	)
	return conflict, err
}

// ListBySchedule returns every stored conflict for a schedule, newest first
// within severity order.
func (r *ConflictRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.Conflict, error) {
	query := fmt.Sprintf("SELECT %s FROM conflicts WHERE schedule_id = $1 ORDER BY detected_at DESC, id ASC", conflictColumns)
	rows, err := r.db.QueryxContext(ctx, query, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []models.Conflict
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		conflicts = append(conflicts, conflict)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conflicts: %w", err)
	}
	return conflicts, nil
}

// FindByID loads one conflict.
func (r *ConflictRepository) FindByID(ctx context.Context, id string) (*models.Conflict, error) {
	query := fmt.Sprintf("SELECT %s FROM conflicts WHERE id = $1", conflictColumns)
	row := r.db.QueryRowxContext(ctx, query, id)
	conflict, err := scanConflict(row)
	if err != nil {
		return nil, err
	}
	return &conflict, nil
}

// UpsertScan stores a scan's detected conflicts, keyed by fingerprint so a
// recurring conflict keeps its identity across scans. Ids and detection
// timestamps assigned here are written back into the given slice.
func (r *ConflictRepository) UpsertScan(ctx context.Context, scheduleID string, conflicts []models.Conflict) error {
	const query = `INSERT INTO conflicts (id, schedule_id, type, severity, status, fingerprint, description, details, suggestion, auto_detected, session_ids, detected_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (schedule_id, fingerprint) DO UPDATE SET
			severity = EXCLUDED.severity,
			status = EXCLUDED.status,
			description = EXCLUDED.description,
			details = EXCLUDED.details,
			suggestion = EXCLUDED.suggestion,
			session_ids = EXCLUDED.session_ids,
			resolved_at = NULL`
	for i := range conflicts {
		conflict := conflicts[i]
		if conflict.ID == "" {
			conflict.ID = uuid.NewString()
		}
		if conflict.DetectedAt.IsZero() {
			conflict.DetectedAt = time.Now().UTC()
		}
		if _, err := r.db.ExecContext(ctx, query,
			conflict.ID,
			scheduleID,
			conflict.Type,
			conflict.Severity,
			conflict.Status,
			conflict.Fingerprint,
			conflict.Description,
			conflict.Details,
			conflict.Suggestion,
			conflict.AutoDetected,
			pq.Array(conflict.SessionIDs),
			conflict.DetectedAt,
			conflict.ResolvedAt,
		); err != nil {
			return fmt.Errorf("upsert conflict: %w", err)
		}
		conflicts[i] = conflict
	}
	return nil
}

// ResolveMissing closes open conflicts whose fingerprint no longer appears
// in the latest scan.
func (r *ConflictRepository) ResolveMissing(ctx context.Context, scheduleID string, activeFingerprints []string) error {
	var err error
	if len(activeFingerprints) == 0 {
		_, err = r.db.ExecContext(ctx, `UPDATE conflicts SET status = 'resolved', resolved_at = NOW() WHERE schedule_id = $1 AND status = 'open'`, scheduleID)
	} else {
		var query string
		var args []interface{}
		query, args, err = sqlx.In(`UPDATE conflicts SET status = 'resolved', resolved_at = NOW() WHERE schedule_id = ? AND status = 'open' AND fingerprint NOT IN (?)`, scheduleID, activeFingerprints)
		if err != nil {
			return fmt.Errorf("build resolve missing query: %w", err)
		}
		_, err = r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	}
	if err != nil {
		return fmt.Errorf("resolve missing conflicts: %w", err)
	}
	return nil
}

// UpdateStatus transitions one conflict, stamping resolved_at when closing it.
func (r *ConflictRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ConflictStatus) error {
	if exec == nil {
		exec = r.db
	}
	var resolvedAt *time.Time
	if status == models.ConflictResolved || status == models.ConflictIgnored {
		now := time.Now().UTC()
		resolvedAt = &now
	}
	result, err := exec.ExecContext(ctx, `UPDATE conflicts SET status = $1, resolved_at = $2 WHERE id = $3`, status, resolvedAt, id)
	if err != nil {
		return fmt.Errorf("update conflict status: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("conflict %s not found", id)
	}
	return nil
}
