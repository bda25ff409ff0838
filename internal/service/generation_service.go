package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
	"github.com/noah-isme/sma-timetable-engine/pkg/jobs"
)

type teachingLoadFetcher interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.TeachingLoad, error)
}

type settingsFetcher interface {
	GetBySchedule(ctx context.Context, scheduleID string) (*models.GenerationSettings, error)
}

type roomFetcher interface {
	List(ctx context.Context) ([]models.Room, error)
}

type sessionStore interface {
	ListByTeachers(ctx context.Context, teacherIDs []string, excludeScheduleID string) ([]models.Session, error)
	ReplaceForSchedule(ctx context.Context, tx *sqlx.Tx, scheduleID string, sessions []models.Session) error
}

type scheduleVersionStore interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, version *models.ScheduleVersion) error
}

type generationTxProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type conflictSyncer interface {
	SyncScan(ctx context.Context, scheduleID string, detected []models.Conflict) ([]models.Conflict, error)
	InvalidateScan(ctx context.Context, scheduleID string)
}

// GenerationService orchestrates timetable generation runs: grid building,
// load normalization, placement, conflict scanning and the all-or-nothing
// persistence hand-off, all behind cancellable job handles.
type GenerationService struct {
	loads     teachingLoadFetcher
	settings  settingsFetcher
	rooms     roomFetcher
	sessions  sessionStore
	versions  scheduleVersionStore
	conflicts conflictSyncer
	tx        generationTxProvider
	registry  *JobRegistry
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// GenerationConfig governs job execution.
type GenerationConfig struct {
	JobTTL  time.Duration
	Workers int
}

// NewGenerationService wires the generation pipeline.
func NewGenerationService(
	loads teachingLoadFetcher,
	settings settingsFetcher,
	rooms roomFetcher,
	sessions sessionStore,
	versions scheduleVersionStore,
	conflicts conflictSyncer,
	tx generationTxProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg GenerationConfig,
) *GenerationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}

	s := &GenerationService{
		loads:     loads,
		settings:  settings,
		rooms:     rooms,
		sessions:  sessions,
		versions:  versions,
		conflicts: conflicts,
		tx:        tx,
		registry:  NewJobRegistry(cfg.JobTTL),
		validator: validate,
		logger:    logger,
		metrics:   metrics,
	}
	s.queue = jobs.NewQueue("timetable-generation", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: 1,
		Logger:     logger,
	})
	return s
}

// Start launches the worker queue and the registry janitor.
func (s *GenerationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	s.registry.Start()
}

// Stop drains workers and stops TTL eviction.
func (s *GenerationService) Stop() {
	s.queue.Stop()
	s.registry.Stop()
}

// PendingJobs reports the queue backlog, exposed by the readiness probe.
func (s *GenerationService) PendingJobs() int {
	return s.queue.Pending()
}

// runPayload is the resolved input travelling through the job queue. The
// context carries the per-job cancel signal registered with the handle.
type runPayload struct {
	ctx     context.Context
	jobID   string
	input   PlacementSetup
	runScan bool
	persist bool
}

// PlacementSetup is one run's fully resolved input set.
type PlacementSetup struct {
	ScheduleID string
	Settings   models.GenerationSettings
	Loads      []models.TeachingLoad
	Rooms      []models.Room
	Busy       []models.Session
	Weights    *ScoringWeights
}

// Generate validates and resolves the request, registers a job handle and
// enqueues the run. Input errors surface here, before anything executes.
func (s *GenerationService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	setup, err := s.resolveInput(ctx, req)
	if err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())
	s.registry.Register(models.GenerationJob{
		ID:         jobID,
		ScheduleID: req.ScheduleID,
		Status:     models.JobPending,
		Step:       "queued",
		StartedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}, cancel)

	err = s.queue.Enqueue(jobs.Job{
		ID:   jobID,
		Type: "generate",
		Payload: runPayload{
			ctx:     runCtx,
			jobID:   jobID,
			input:   *setup,
			runScan: req.RunScan,
			persist: req.Persist,
		},
	})
	if err != nil {
		cancel()
		s.registry.Complete(jobID, models.JobFailed, nil, "queue unavailable")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue generation job")
	}

	return &dto.GenerateTimetableResponse{JobID: jobID, Status: models.JobPending}, nil
}

// RunSync executes one full run inline, bypassing the queue. Used by the
// synchronous API mode; also the seam integration tests drive.
func (s *GenerationService) RunSync(ctx context.Context, req dto.GenerateTimetableRequest) (*models.GenerationResult, error) {
	setup, err := s.resolveInput(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, "", *setup, req.RunScan, req.Persist)
}

// Progress returns the polling view for a job handle.
func (s *GenerationService) Progress(jobID string) (*dto.JobProgressResponse, error) {
	job, ok := s.registry.Get(jobID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found or expired")
	}
	return &dto.JobProgressResponse{
		JobID:   job.ID,
		Percent: job.Percent,
		Step:    job.Step,
		Status:  job.Status,
		Error:   job.Error,
	}, nil
}

// Result returns the final outcome once the job reached a terminal state.
func (s *GenerationService) Result(jobID string) (*models.GenerationResult, error) {
	result, job, ok := s.registry.Result(jobID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found or expired")
	}
	if !job.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "generation job still running")
	}
	if result == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("generation job %s produced no result (%s)", jobID, job.Status))
	}
	return result, nil
}

// Cancel flips the job's cooperative cancellation flag. The run observes it
// between placement iterations; nothing is persisted for a cancelled run.
func (s *GenerationService) Cancel(jobID string) error {
	if !s.registry.Cancel(jobID) {
		return appErrors.Clone(appErrors.ErrNotFound, "generation job not found or expired")
	}
	return nil
}

func (s *GenerationService) handleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(runPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for job %s", job.Payload, job.ID)
	}

	result, err := s.execute(payload.ctx, payload.jobID, payload.input, payload.runScan, payload.persist)
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		s.registry.Complete(payload.jobID, models.JobCancelled, result, "")
	case err != nil:
		s.registry.Complete(payload.jobID, models.JobFailed, nil, err.Error())
		s.logger.Error("generation job failed", zap.String("job_id", payload.jobID), zap.Error(err))
	case result != nil && result.Status == models.PlacementCancelled:
		s.registry.Complete(payload.jobID, models.JobCancelled, result, "")
	default:
		s.registry.Complete(payload.jobID, models.JobCompleted, result, "")
	}
	// Errors are terminal for generation jobs; retrying a failed run with
	// identical input cannot succeed.
	return nil
}

func (s *GenerationService) resolveInput(ctx context.Context, req dto.GenerateTimetableRequest) (*PlacementSetup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}

	setup := &PlacementSetup{ScheduleID: req.ScheduleID}

	weights, err := ResolveScoringWeights(req.PreferenceWt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preference weights")
	}
	setup.Weights = weights

	switch {
	case req.Settings != nil:
		if err := s.validator.Struct(req.Settings); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation settings")
		}
		setup.Settings = *req.Settings
	case s.settings != nil:
		stored, err := s.settings.GetBySchedule(ctx, req.ScheduleID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "generation settings not found for schedule")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generation settings")
		}
		setup.Settings = *stored
	default:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "generation settings are required")
	}

	switch {
	case len(req.Loads) > 0:
		setup.Loads = make([]models.TeachingLoad, 0, len(req.Loads))
		for _, payload := range req.Loads {
			setup.Loads = append(setup.Loads, payloadToLoad(req.ScheduleID, payload))
		}
	case s.loads != nil:
		stored, err := s.loads.ListBySchedule(ctx, req.ScheduleID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teaching loads")
		}
		setup.Loads = stored
	}
	if len(setup.Loads) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no teaching loads defined for this schedule")
	}

	if len(req.Rooms) > 0 {
		setup.Rooms = req.Rooms
	} else if s.rooms != nil {
		stored, err := s.rooms.List(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
		}
		setup.Rooms = stored
	}

	if s.sessions != nil {
		teacherIDs := make([]string, 0, len(setup.Loads))
		seen := make(map[string]bool, len(setup.Loads))
		for _, load := range setup.Loads {
			if !seen[load.TeacherID] {
				seen[load.TeacherID] = true
				teacherIDs = append(teacherIDs, load.TeacherID)
			}
		}
		busy, err := s.sessions.ListByTeachers(ctx, teacherIDs, req.ScheduleID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing teacher commitments")
		}
		setup.Busy = busy
	}

	return setup, nil
}

// execute runs the pipeline. jobID may be empty for synchronous runs; all
// progress publication is skipped then.
func (s *GenerationService) execute(ctx context.Context, jobID string, setup PlacementSetup, runScan, persist bool) (*models.GenerationResult, error) {
	started := time.Now()
	s.publish(jobID, 2, "starting", models.JobRunning)

	grid, err := BuildTimeGrid(setup.Settings)
	if err != nil {
		return nil, err
	}
	s.publish(jobID, 8, "grid-built", models.JobRunning)

	requests, issues := NormalizeLoads(setup.Loads, grid)
	s.publish(jobID, 12, "loads-normalized", models.JobRunning)

	outcome := RunPlacement(ctx, PlacementInput{
		ScheduleID: setup.ScheduleID,
		Grid:       grid,
		Requests:   requests,
		Rooms:      setup.Rooms,
		Busy:       setup.Busy,
		Weights:    setup.Weights,
	}, func(done, total int) {
		if total == 0 {
			return
		}
		percent := 12 + done*70/total
		s.publish(jobID, percent, "searching", models.JobRunning)
	})

	result := &models.GenerationResult{
		Status:   outcome.Status,
		Sessions: outcome.Sessions,
		Unplaced: outcome.Unplaced,
		Issues:   issues,
		Stats:    outcome.Stats,
		Log:      outcome.Log,
	}

	if outcome.Status == models.PlacementCancelled {
		s.logger.Info("generation cancelled", zap.String("schedule_id", setup.ScheduleID), zap.String("job_id", jobID))
		if s.metrics != nil {
			s.metrics.ObserveGeneration(outcome.Status, outcome.Stats, time.Since(started))
		}
		return result, nil
	}

	if len(requests) > 0 && outcome.Status == models.PlacementFailed {
		s.publish(jobID, 100, "done", models.JobRunning)
		if s.metrics != nil {
			s.metrics.ObserveGeneration(outcome.Status, outcome.Stats, time.Since(started))
		}
		return result, nil
	}

	if runScan {
		s.publish(jobID, 86, "conflict-scan", models.JobRunning)
		detected := DetectConflicts(ConflictSnapshot{
			ScheduleID: setup.ScheduleID,
			Sessions:   outcome.Sessions,
			Grid:       grid,
			Rooms:      setup.Rooms,
			Loads:      setup.Loads,
		})
		if s.conflicts != nil {
			synced, err := s.conflicts.SyncScan(ctx, setup.ScheduleID, detected)
			if err != nil {
				return nil, err
			}
			detected = synced
		}
		result.Conflicts = detected
		if s.metrics != nil {
			s.metrics.ObserveConflicts(detected)
		}
	}

	if persist {
		s.publish(jobID, 94, "persisting", models.JobRunning)
		versionID, err := s.persistRun(ctx, setup.ScheduleID, result)
		if err != nil {
			return nil, err
		}
		result.ScheduleVersionID = versionID
		if s.conflicts != nil {
			// The committed session set changed; a cached scan is stale now.
			s.conflicts.InvalidateScan(ctx, setup.ScheduleID)
		}
	}

	s.publish(jobID, 100, "done", models.JobRunning)
	if s.metrics != nil {
		s.metrics.ObserveGeneration(outcome.Status, outcome.Stats, time.Since(started))
	}
	s.logger.Info("generation finished",
		zap.String("schedule_id", setup.ScheduleID),
		zap.String("status", string(outcome.Status)),
		zap.Int("placed", outcome.Stats.SessionsPlaced),
		zap.Int("unplaced", outcome.Stats.Unplaced),
	)
	return result, nil
}

// persistRun hands the session set to storage as one all-or-nothing batch:
// a new schedule version plus its sessions inside a single transaction.
func (s *GenerationService) persistRun(ctx context.Context, scheduleID string, result *models.GenerationResult) (string, error) {
	if s.tx == nil || s.sessions == nil || s.versions == nil {
		return "", appErrors.Clone(appErrors.ErrPreconditionFailed, "persistence is not configured")
	}

	meta, err := json.Marshal(map[string]any{
		"status":     result.Status,
		"statistics": result.Stats,
		"unplaced":   result.Unplaced,
		"algorithm":  "constructive_v1",
	})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run metadata")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	version := &models.ScheduleVersion{
		ScheduleID: scheduleID,
		Status:     models.ScheduleVersionDraft,
		Meta:       types.JSONText(meta),
	}
	if err = s.versions.CreateVersioned(ctx, tx, version); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule version")
		return "", err
	}
	if err = s.sessions.ReplaceForSchedule(ctx, tx, scheduleID, result.Sessions); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist sessions")
		return "", err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit generation transaction")
		return "", err
	}
	return version.ID, nil
}

func (s *GenerationService) publish(jobID string, percent int, step string, status models.JobStatus) {
	if jobID == "" {
		return
	}
	s.registry.Update(jobID, percent, step, status, "")
}

func payloadToLoad(scheduleID string, payload dto.TeachingLoadPayload) models.TeachingLoad {
	return models.TeachingLoad{
		ID:                      payload.ID,
		ScheduleID:              scheduleID,
		TeacherID:               payload.TeacherID,
		SubjectID:               payload.SubjectID,
		ClassID:                 payload.ClassID,
		WeeklyHours:             payload.WeeklyHours,
		PriorityLevel:           payload.PriorityLevel,
		PreferredConsecutiveHrs: payload.PreferredConsecutiveHrs,
		PreferredTimeSlots:      payload.PreferredTimeSlots,
		UnavailablePeriods:      payload.UnavailablePeriods,
		IdealDistribution:       payload.IdealDistribution,
		Constraints:             payload.Constraints,
		ClassSize:               payload.ClassSize,
	}
}
