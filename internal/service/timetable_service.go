package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

type sessionLister interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.Session, error)
}

type versionStore interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.ScheduleVersion, error)
	UpdateStatus(ctx context.Context, id string, status models.ScheduleVersionStatus) error
}

// TimetableService exposes read access to committed timetables and the
// version lifecycle.
type TimetableService struct {
	sessions sessionLister
	versions versionStore
	logger   *zap.Logger
}

// NewTimetableService wires the read side dependencies.
func NewTimetableService(sessions sessionLister, versions versionStore, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{sessions: sessions, versions: versions, logger: logger}
}

// ListSessions returns a schedule's committed sessions in grid order.
func (s *TimetableService) ListSessions(ctx context.Context, scheduleID string) ([]models.Session, error) {
	if scheduleID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule id is required")
	}
	sessions, err := s.sessions.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// ListVersions returns a schedule's version history, newest first.
func (s *TimetableService) ListVersions(ctx context.Context, scheduleID string) ([]models.ScheduleVersion, error) {
	if scheduleID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule id is required")
	}
	versions, err := s.versions.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list versions")
	}
	return versions, nil
}

// PublishVersion promotes a draft, archiving any previously published
// version of the same schedule.
func (s *TimetableService) PublishVersion(ctx context.Context, versionID string) error {
	if versionID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "version id is required")
	}
	if err := s.versions.UpdateStatus(ctx, versionID, models.ScheduleVersionPublished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule version not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish version")
	}
	s.logger.Info("schedule version published", zap.String("version_id", versionID))
	return nil
}
