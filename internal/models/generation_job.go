package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// JobStatus tracks a generation run's lifecycle.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobCancelled JobStatus = "cancelled"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobCancelled || s == JobFailed
}

// GenerationJob is the progress view of one timetable generation run.
// Single writer (the job itself), many readers (progress pollers).
type GenerationJob struct {
	ID         string    `json:"id"`
	ScheduleID string    `json:"schedule_id"`
	Percent    int       `json:"percent"`
	Step       string    `json:"step"`
	Status     JobStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PlacementStatus is the terminal outcome of the placement search.
type PlacementStatus string

const (
	PlacementSucceeded          PlacementStatus = "succeeded"
	PlacementPartiallySucceeded PlacementStatus = "partially_succeeded"
	PlacementFailed             PlacementStatus = "failed"
	PlacementCancelled          PlacementStatus = "cancelled"
)

// GenerationLogEntry records one placement decision, in order.
type GenerationLogEntry struct {
	Seq          int      `json:"seq"`
	Action       string   `json:"action"`
	LoadID       string   `json:"load_id"`
	Sequence     int      `json:"block"`
	DayOfWeek    int      `json:"day_of_week,omitempty"`
	PeriodNumber int      `json:"period_number,omitempty"`
	RoomID       string   `json:"room_id,omitempty"`
	Score        float64  `json:"score,omitempty"`
	Reasons      []string `json:"reasons,omitempty"`
}

// Generation log actions.
const (
	LogActionPlaced       = "placed"
	LogActionRepairedMove = "repaired-move"
	LogActionUnplaced     = "unplaced"
)

// UnplacedRequest reports a block the engine could not place.
type UnplacedRequest struct {
	LoadID    string `json:"load_id"`
	TeacherID string `json:"teacher_id"`
	ClassID   string `json:"class_id"`
	Sequence  int    `json:"block"`
	Hours     int    `json:"hours"`
	Reason    string `json:"reason"`
}

// GenerationStats summarises a run for operators and metrics.
type GenerationStats struct {
	RequestsTotal  int     `json:"requests_total"`
	SessionsPlaced int     `json:"sessions_placed"`
	Unplaced       int     `json:"unplaced"`
	RepairMoves    int     `json:"repair_moves"`
	PreferenceHits int     `json:"preference_hits"`
	Score          float64 `json:"score"`
}

// GenerationResult is the full outcome of one run.
type GenerationResult struct {
	Status            PlacementStatus       `json:"status"`
	ScheduleVersionID string                `json:"schedule_version_id,omitempty"`
	Sessions          []Session             `json:"sessions"`
	Unplaced          []UnplacedRequest     `json:"unplaced,omitempty"`
	Issues            []LoadValidationIssue `json:"issues,omitempty"`
	Conflicts         []Conflict            `json:"conflicts,omitempty"`
	ResolvedConflicts int                   `json:"resolved_conflicts"`
	Stats             GenerationStats       `json:"statistics"`
	Log               []GenerationLogEntry  `json:"generation_log"`
}

// ScheduleVersionStatus mirrors the lifecycle of persisted timetables.
type ScheduleVersionStatus string

const (
	ScheduleVersionDraft     ScheduleVersionStatus = "DRAFT"
	ScheduleVersionPublished ScheduleVersionStatus = "PUBLISHED"
	ScheduleVersionArchived  ScheduleVersionStatus = "ARCHIVED"
)

// ScheduleVersion is a persisted, versioned timetable for a schedule.
type ScheduleVersion struct {
	ID         string                `db:"id" json:"id"`
	ScheduleID string                `db:"schedule_id" json:"schedule_id"`
	Version    int                   `db:"version" json:"version"`
	Status     ScheduleVersionStatus `db:"status" json:"status"`
	Meta       types.JSONText        `db:"meta" json:"meta"`
	CreatedAt  time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time             `db:"updated_at" json:"updated_at"`
}
