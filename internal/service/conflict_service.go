package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

type conflictStore interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.Conflict, error)
	FindByID(ctx context.Context, id string) (*models.Conflict, error)
	UpsertScan(ctx context.Context, scheduleID string, conflicts []models.Conflict) error
	ResolveMissing(ctx context.Context, scheduleID string, activeFingerprints []string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ConflictStatus) error
}

type conflictSessionReader interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.Session, error)
	UpdateSlot(ctx context.Context, exec sqlx.ExtContext, sessionID string, day, period int, roomID *string) error
}

type conflictCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// resolveStrategy applies the canonical fix for one conflict type, returning
// the sessions it changed. Types without a strategy require manual edits.
type resolveStrategy func(ctx context.Context, s *ConflictService, conflict *models.Conflict) ([]models.Session, error)

// resolutionStrategies is the handler table mapping conflict types to their
// automated fixes. Collision types relocate one participant; gaps pull a
// session earlier. Everything else directs the operator to a manual edit.
var resolutionStrategies = map[models.ConflictType]resolveStrategy{
	models.ConflictTeacher:     resolveByRelocation,
	models.ConflictRoom:        resolveByRelocation,
	models.ConflictScheduleGap: resolveByRelocation,
}

// ConflictService runs detection over committed session sets and manages
// the conflict lifecycle, caching scan results per schedule.
type ConflictService struct {
	conflicts conflictStore
	sessions  conflictSessionReader
	loads     teachingLoadFetcher
	settings  settingsFetcher
	rooms     roomFetcher
	cache     conflictCache
	tx        generationTxProvider
	logger    *zap.Logger
	metrics   *MetricsService
	cacheTTL  time.Duration
}

// NewConflictService wires conflict detection dependencies.
func NewConflictService(
	conflicts conflictStore,
	sessions conflictSessionReader,
	loads teachingLoadFetcher,
	settings settingsFetcher,
	rooms roomFetcher,
	cache conflictCache,
	tx generationTxProvider,
	logger *zap.Logger,
	metrics *MetricsService,
	cacheTTL time.Duration,
) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ConflictService{
		conflicts: conflicts,
		sessions:  sessions,
		loads:     loads,
		settings:  settings,
		rooms:     rooms,
		cache:     cache,
		tx:        tx,
		logger:    logger,
		metrics:   metrics,
		cacheTTL:  cacheTTL,
	}
}

func conflictScanKey(scheduleID string) string {
	return fmt.Sprintf("conflicts:scan:%s", scheduleID)
}

// Scan detects conflicts over the schedule's committed sessions, reconciles
// them with the stored lifecycle and caches the outcome.
func (s *ConflictService) Scan(ctx context.Context, scheduleID string) (*dto.ConflictScanResponse, error) {
	if scheduleID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule id is required")
	}

	if s.cache != nil {
		var cached dto.ConflictScanResponse
		if err := s.cache.Get(ctx, conflictScanKey(scheduleID), &cached); err == nil {
			cached.FromCache = true
			return &cached, nil
		}
	}

	snapshot, err := s.buildSnapshot(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	detected := DetectConflicts(*snapshot)
	active, err := s.SyncScan(ctx, scheduleID, detected)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveConflicts(active)
	}

	resp := &dto.ConflictScanResponse{ScheduleID: scheduleID, Conflicts: active}
	if s.cache != nil {
		if err := s.cache.Set(ctx, conflictScanKey(scheduleID), resp, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache conflict scan", zap.String("schedule_id", scheduleID), zap.Error(err))
		}
	}
	return resp, nil
}

// SyncScan reconciles freshly detected conflicts with the stored set by
// fingerprint: ignored conflicts stay suppressed while their sessions are
// unchanged, resolved ones that recur re-open, and stored open conflicts
// whose violation disappeared are closed. Returns the active set.
func (s *ConflictService) SyncScan(ctx context.Context, scheduleID string, detected []models.Conflict) ([]models.Conflict, error) {
	if s.conflicts == nil {
		return detected, nil
	}

	existing, err := s.conflicts.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stored conflicts")
	}
	byFingerprint := make(map[string]models.Conflict, len(existing))
	for _, conflict := range existing {
		byFingerprint[conflict.Fingerprint] = conflict
	}

	var active []models.Conflict
	fingerprints := make([]string, 0, len(detected))
	for _, conflict := range detected {
		fingerprints = append(fingerprints, conflict.Fingerprint)
		if stored, ok := byFingerprint[conflict.Fingerprint]; ok {
			switch stored.Status {
			case models.ConflictIgnored:
				continue
			case models.ConflictResolved:
				// Recurring violation re-opens under its stored identity.
				conflict.ID = stored.ID
				conflict.Status = models.ConflictOpen
			default:
				conflict.ID = stored.ID
				conflict.DetectedAt = stored.DetectedAt
			}
		}
		active = append(active, conflict)
	}

	// UpsertScan writes assigned ids and timestamps back into the slice, so
	// the conflicts returned to callers are addressable by Resolve/Ignore.
	if err := s.conflicts.UpsertScan(ctx, scheduleID, active); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store scan results")
	}
	if err := s.conflicts.ResolveMissing(ctx, scheduleID, fingerprints); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close stale conflicts")
	}
	return active, nil
}

// List returns stored conflicts filtered by status/type.
func (s *ConflictService) List(ctx context.Context, scheduleID string, query dto.ConflictQuery) ([]models.Conflict, error) {
	if scheduleID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule id is required")
	}
	conflicts, err := s.conflicts.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conflicts")
	}
	filtered := conflicts[:0:0]
	for _, conflict := range conflicts {
		if query.Status != "" && string(conflict.Status) != query.Status {
			continue
		}
		if query.Type != "" && string(conflict.Type) != query.Type {
			continue
		}
		filtered = append(filtered, conflict)
	}
	return filtered, nil
}

// Resolve applies the conflict type's canonical fix when one exists. The
// conflict stays open when only a manual edit can fix it.
func (s *ConflictService) Resolve(ctx context.Context, conflictID string) (*dto.ResolveConflictResponse, error) {
	conflict, err := s.findOpenConflict(ctx, conflictID)
	if err != nil {
		return nil, err
	}

	strategy, ok := resolutionStrategies[conflict.Type]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrManualResolution, fmt.Sprintf("%s conflicts have no automated fix; edit the sessions manually", conflict.Type))
	}

	changed, err := strategy(ctx, s, conflict)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveResolution(conflict.Type)
	}
	s.invalidate(ctx, conflict.ScheduleID)
	return &dto.ResolveConflictResponse{ConflictID: conflictID, Sessions: changed}, nil
}

// Ignore suppresses a conflict without touching sessions. A later scan will
// not re-surface it unless the underlying sessions changed.
func (s *ConflictService) Ignore(ctx context.Context, conflictID string) error {
	conflict, err := s.findOpenConflict(ctx, conflictID)
	if err != nil {
		return err
	}
	if err := s.conflicts.UpdateStatus(ctx, nil, conflict.ID, models.ConflictIgnored); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to ignore conflict")
	}
	s.invalidate(ctx, conflict.ScheduleID)
	return nil
}

// InvalidateScan drops the schedule's cached scan. Regeneration replaces the
// committed session set, so a cached scan would keep serving conflicts for
// sessions that no longer exist.
func (s *ConflictService) InvalidateScan(ctx context.Context, scheduleID string) {
	s.invalidate(ctx, scheduleID)
}

func (s *ConflictService) findOpenConflict(ctx context.Context, conflictID string) (*models.Conflict, error) {
	if conflictID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "conflict id is required")
	}
	conflict, err := s.conflicts.FindByID(ctx, conflictID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "conflict not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conflict")
	}
	if conflict.Status != models.ConflictOpen {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("conflict is already %s", conflict.Status))
	}
	return conflict, nil
}

func (s *ConflictService) buildSnapshot(ctx context.Context, scheduleID string) (*ConflictSnapshot, error) {
	sessions, err := s.sessions.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}

	snapshot := &ConflictSnapshot{ScheduleID: scheduleID, Sessions: sessions}

	if s.settings != nil {
		settings, err := s.settings.GetBySchedule(ctx, scheduleID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
		}
		if settings != nil {
			grid, err := BuildTimeGrid(*settings)
			if err != nil {
				return nil, err
			}
			snapshot.Grid = grid
		}
	}
	if s.loads != nil {
		loads, err := s.loads.ListBySchedule(ctx, scheduleID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teaching loads")
		}
		snapshot.Loads = loads
	}
	if s.rooms != nil {
		rooms, err := s.rooms.List(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
		}
		snapshot.Rooms = rooms
	}
	return snapshot, nil
}

func (s *ConflictService) invalidate(ctx context.Context, scheduleID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, conflictScanKey(scheduleID)); err != nil {
		s.logger.Warn("failed to invalidate conflict cache", zap.String("schedule_id", scheduleID), zap.Error(err))
	}
}

// resolveByRelocation moves one participating session to the best-scoring
// alternative slot, reusing the placement engine's scoring function. The
// victim is the participant whose load has the lowest priority, ties going
// to the later (day, period).
func resolveByRelocation(ctx context.Context, s *ConflictService, conflict *models.Conflict) ([]models.Session, error) {
	if len(conflict.SessionIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrManualResolution, "conflict carries no session references; edit the sessions manually")
	}

	snapshot, err := s.buildSnapshot(ctx, conflict.ScheduleID)
	if err != nil {
		return nil, err
	}
	if len(snapshot.Grid) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "generation settings are required to relocate sessions")
	}

	loadsByID := make(map[string]models.TeachingLoad, len(snapshot.Loads))
	for _, load := range snapshot.Loads {
		loadsByID[load.ID] = load
	}

	participants := make([]models.Session, 0, len(conflict.SessionIDs))
	rest := make([]models.Session, 0, len(snapshot.Sessions))
	wanted := make(map[string]bool, len(conflict.SessionIDs))
	for _, id := range conflict.SessionIDs {
		wanted[id] = true
	}
	for _, session := range snapshot.Sessions {
		if wanted[session.ID] {
			participants = append(participants, session)
		} else {
			rest = append(rest, session)
		}
	}
	if len(participants) == 0 {
		return nil, appErrors.Clone(appErrors.ErrManualResolution, "referenced sessions no longer exist; rescan first")
	}

	victim := pickVictim(participants, loadsByID)
	others := append(rest, withoutSession(participants, victim.ID)...)

	state := newPlacementState(PlacementInput{
		ScheduleID: conflict.ScheduleID,
		Grid:       snapshot.Grid,
		Rooms:      snapshot.Rooms,
	})
	state.occupy(others)

	load := loadsByID[victim.TeachingLoadID]
	request := models.PlacementRequest{
		LoadID:      victim.TeachingLoadID,
		TeacherID:   victim.TeacherID,
		SubjectID:   victim.SubjectID,
		ClassID:     victim.ClassID,
		BlockLength: 1,
		Priority:    load.PriorityLevel,
		WeeklyHours: load.WeeklyHours,
		ClassSize:   load.ClassSize,
		Preferred:   load.PreferredTimeSlots,
		Unavailable: load.UnavailablePeriods,
		Constraints: load.Constraints,
	}
	best, _ := state.bestCandidate(request)
	if best == nil {
		return nil, appErrors.Clone(appErrors.ErrManualResolution, "no free slot accommodates the session; edit the timetable manually")
	}

	var roomID *string
	if best.RoomID != "" {
		room := best.RoomID
		roomID = &room
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.sessions.UpdateSlot(ctx, tx, victim.ID, best.Day, best.Start, roomID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move session")
		return nil, err
	}
	if err = s.conflicts.UpdateStatus(ctx, tx, conflict.ID, models.ConflictResolved); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark conflict resolved")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit resolution")
		return nil, err
	}

	victim.DayOfWeek = best.Day
	victim.PeriodNumber = best.Start
	victim.RoomID = roomID
	s.logger.Info("conflict resolved by relocation",
		zap.String("conflict_id", conflict.ID),
		zap.String("session_id", victim.ID),
		zap.Int("day", best.Day),
		zap.Int("period", best.Start),
	)
	return []models.Session{victim}, nil
}

func pickVictim(participants []models.Session, loads map[string]models.TeachingLoad) models.Session {
	sorted := make([]models.Session, len(participants))
	copy(sorted, participants)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		pa, pb := loads[a.TeachingLoadID].PriorityLevel, loads[b.TeachingLoadID].PriorityLevel
		if pa != pb {
			return pa < pb
		}
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek > b.DayOfWeek
		}
		if a.PeriodNumber != b.PeriodNumber {
			return a.PeriodNumber > b.PeriodNumber
		}
		return a.ID > b.ID
	})
	return sorted[0]
}

func withoutSession(sessions []models.Session, id string) []models.Session {
	result := make([]models.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.ID != id {
			result = append(result, session)
		}
	}
	return result
}
