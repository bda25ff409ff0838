package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

func TestTimetableServiceListSessions(t *testing.T) {
	sessions := &sessionListerStub{items: []models.Session{
		{ID: "s1", ScheduleID: "sched-1", DayOfWeek: 1, PeriodNumber: 1},
	}}
	service := NewTimetableService(sessions, &versionStoreStub{}, nil)

	listed, err := service.ListSessions(context.Background(), "sched-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = service.ListSessions(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceListVersions(t *testing.T) {
	versions := &versionStoreStub{items: []models.ScheduleVersion{
		{ID: "v2", ScheduleID: "sched-1", Version: 2, Status: models.ScheduleVersionDraft},
		{ID: "v1", ScheduleID: "sched-1", Version: 1, Status: models.ScheduleVersionPublished},
	}}
	service := NewTimetableService(&sessionListerStub{}, versions, nil)

	listed, err := service.ListVersions(context.Background(), "sched-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, 2, listed[0].Version)
}

func TestTimetableServicePublishVersion(t *testing.T) {
	versions := &versionStoreStub{items: []models.ScheduleVersion{
		{ID: "v1", ScheduleID: "sched-1", Version: 1, Status: models.ScheduleVersionDraft},
	}}
	service := NewTimetableService(&sessionListerStub{}, versions, nil)

	require.NoError(t, service.PublishVersion(context.Background(), "v1"))
	assert.Equal(t, models.ScheduleVersionPublished, versions.items[0].Status)
}

func TestTimetableServicePublishUnknownVersion(t *testing.T) {
	service := NewTimetableService(&sessionListerStub{}, &versionStoreStub{}, nil)

	err := service.PublishVersion(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

type sessionListerStub struct {
	items []models.Session
}

func (s *sessionListerStub) ListBySchedule(ctx context.Context, scheduleID string) ([]models.Session, error) {
	return s.items, nil
}

type versionStoreStub struct {
	items []models.ScheduleVersion
}

func (s *versionStoreStub) ListBySchedule(ctx context.Context, scheduleID string) ([]models.ScheduleVersion, error) {
	return s.items, nil
}

func (s *versionStoreStub) UpdateStatus(ctx context.Context, id string, status models.ScheduleVersionStatus) error {
	for idx := range s.items {
		if s.items[idx].ID == id {
			s.items[idx].Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}
