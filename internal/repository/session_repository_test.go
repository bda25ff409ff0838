package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sessionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "schedule_id", "teaching_load_id", "teacher_id", "subject_id", "class_id", "room_id", "day_of_week", "period_number", "created_at"})
}

func TestSessionRepositoryListBySchedule(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	rows := sessionRows().
		AddRow("s1", "sched-1", "load-1", "teacher-1", "math", "class-a", nil, 1, 1, time.Now()).
		AddRow("s2", "sched-1", "load-2", "teacher-2", "biology", "class-a", "room-1", 1, 2, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE schedule_id = $1 ORDER BY day_of_week ASC, period_number ASC, class_id ASC")).
		WithArgs("sched-1").
		WillReturnRows(rows)

	sessions, err := repo.ListBySchedule(context.Background(), "sched-1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, "s1", sessions[0].ID)
	require.Nil(t, sessions[0].RoomID)
	require.NotNil(t, sessions[1].RoomID)
	require.Equal(t, "room-1", *sessions[1].RoomID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListByTeachers(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	rows := sessionRows().
		AddRow("s1", "other-sched", "load-9", "teacher-1", "math", "class-z", nil, 2, 3, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE teacher_id IN")).
		WithArgs("teacher-1", "teacher-2", "sched-1").
		WillReturnRows(rows)

	sessions, err := repo.ListByTeachers(context.Background(), []string{"teacher-1", "teacher-2"}, "sched-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "other-sched", sessions[0].ScheduleID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListByTeachersEmptyInput(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	sessions, err := repo.ListByTeachers(context.Background(), nil, "sched-1")
	require.NoError(t, err)
	require.Nil(t, sessions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryReplaceForSchedule(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE schedule_id = $1")).
		WithArgs("sched-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	sessions := []models.Session{
		{ScheduleID: "sched-1", TeachingLoadID: "load-1", TeacherID: "teacher-1", SubjectID: "math", ClassID: "class-a", DayOfWeek: 1, PeriodNumber: 1},
		{ScheduleID: "sched-1", TeachingLoadID: "load-1", TeacherID: "teacher-1", SubjectID: "math", ClassID: "class-a", DayOfWeek: 2, PeriodNumber: 1},
	}
	require.NoError(t, repo.ReplaceForSchedule(context.Background(), tx, "sched-1", sessions))
	require.NotEmpty(t, sessions[0].ID, "missing ids are assigned at insert")
	require.NotEmpty(t, sessions[1].ID)
	require.NotEqual(t, sessions[0].ID, sessions[1].ID)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryReplaceForScheduleRequiresTx(t *testing.T) {
	db, _, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	err := repo.ReplaceForSchedule(context.Background(), nil, "sched-1", nil)
	require.Error(t, err)
}

func TestSessionRepositoryUpdateSlot(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	room := "room-2"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET day_of_week = $1, period_number = $2, room_id = $3 WHERE id = $4")).
		WithArgs(2, 3, &room, "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateSlot(context.Background(), nil, "s1", 2, 3, &room))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdateSlotNotFound(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateSlot(context.Background(), nil, "missing", 1, 1, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryDeleteBySchedule(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE schedule_id = $1")).
		WithArgs("sched-1").
		WillReturnResult(sqlmock.NewResult(0, 5))

	require.NoError(t, repo.DeleteBySchedule(context.Background(), "sched-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
