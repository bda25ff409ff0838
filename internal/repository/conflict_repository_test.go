package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

func newConflictRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func conflictRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "schedule_id", "type", "severity", "status", "fingerprint", "description", "details", "suggestion", "auto_detected", "session_ids", "detected_at", "resolved_at"})
}

func TestConflictRepositoryListBySchedule(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()

	repo := NewConflictRepository(db)
	rows := conflictRows().
		AddRow("c1", "sched-1", "teacher_conflict", "critical", "open", "fp-1", "double booking", []byte(`{}`), "", true, "{s1,s2}", time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM conflicts WHERE schedule_id = $1 ORDER BY detected_at DESC, id ASC")).
		WithArgs("sched-1").
		WillReturnRows(rows)

	conflicts, err := repo.ListBySchedule(context.Background(), "sched-1")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, models.ConflictTeacher, conflicts[0].Type)
	require.Equal(t, []string{"s1", "s2"}, conflicts[0].SessionIDs)
	require.Nil(t, conflicts[0].ResolvedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()

	repo := NewConflictRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM conflicts WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictRepositoryUpsertScan(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()

	repo := NewConflictRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO conflicts")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO conflicts")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	conflicts := []models.Conflict{
		{ScheduleID: "sched-1", Type: models.ConflictTeacher, Severity: models.SeverityCritical, Status: models.ConflictOpen, Fingerprint: "fp-1", SessionIDs: []string{"s1", "s2"}},
		{ScheduleID: "sched-1", Type: models.ConflictRoom, Severity: models.SeverityHigh, Status: models.ConflictOpen, Fingerprint: "fp-2"},
	}
	require.NoError(t, repo.UpsertScan(context.Background(), "sched-1", conflicts))
	require.NotEmpty(t, conflicts[0].ID, "missing ids are assigned at insert")
	require.False(t, conflicts[0].DetectedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictRepositoryResolveMissingClosesAll(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()

	repo := NewConflictRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE conflicts SET status = 'resolved', resolved_at = NOW() WHERE schedule_id = $1 AND status = 'open'")).
		WithArgs("sched-1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	require.NoError(t, repo.ResolveMissing(context.Background(), "sched-1", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictRepositoryResolveMissingKeepsActive(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()

	repo := NewConflictRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("AND fingerprint NOT IN")).
		WithArgs("sched-1", "fp-1", "fp-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ResolveMissing(context.Background(), "sched-1", []string{"fp-1", "fp-2"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictRepositoryUpdateStatusStampsResolvedAt(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()

	repo := NewConflictRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE conflicts SET status = $1, resolved_at = $2 WHERE id = $3")).
		WithArgs("resolved", sqlmock.AnyArg(), "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "c1", models.ConflictResolved))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictRepositoryUpdateStatusNotFound(t *testing.T) {
	db, mock, cleanup := newConflictRepoMock(t)
	defer cleanup()

	repo := NewConflictRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE conflicts SET status = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), nil, "missing", models.ConflictIgnored)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}
