package dto

import "github.com/noah-isme/sma-timetable-engine/internal/models"

// TeachingLoadPayload lets callers pass loads inline instead of relying on
// the stored roster. Fields mirror models.TeachingLoad.
type TeachingLoadPayload struct {
	ID                      string                 `json:"id" validate:"required"`
	TeacherID               string                 `json:"teacherId" validate:"required"`
	SubjectID               string                 `json:"subjectId" validate:"required"`
	ClassID                 string                 `json:"classId" validate:"required"`
	WeeklyHours             int                    `json:"weeklyHours" validate:"required,min=1,max=40"`
	PriorityLevel           int                    `json:"priorityLevel" validate:"omitempty,min=1,max=5"`
	PreferredConsecutiveHrs int                    `json:"preferredConsecutiveHours" validate:"omitempty,min=1,max=4"`
	PreferredTimeSlots      []models.SlotRef       `json:"preferredTimeSlots"`
	UnavailablePeriods      []models.SlotRef       `json:"unavailablePeriods"`
	IdealDistribution       []int                  `json:"idealDistribution"`
	Constraints             models.LoadConstraints `json:"constraints"`
	ClassSize               int                    `json:"classSize" validate:"omitempty,min=1"`
}

// GenerateTimetableRequest starts one generation run for a schedule.
// Settings, loads and rooms may be given inline; when omitted they are
// fetched from the repositories by schedule ID.
type GenerateTimetableRequest struct {
	ScheduleID   string                     `json:"scheduleId" validate:"required"`
	Settings     *models.GenerationSettings `json:"settings" validate:"omitempty"`
	Loads        []TeachingLoadPayload      `json:"loads" validate:"omitempty,max=256,dive"`
	Rooms        []models.Room              `json:"rooms"`
	RunScan bool `json:"runConflictScan"`
	Persist bool `json:"persist"`
	// PreferenceWt overrides individual scoring weights for this run. Keys:
	// preferredSlot, adjacency, distribution, gap.
	PreferenceWt map[string]float64 `json:"preferenceWeights,omitempty"`
}

// GenerateTimetableResponse acknowledges an enqueued run.
type GenerateTimetableResponse struct {
	JobID  string           `json:"jobId"`
	Status models.JobStatus `json:"status"`
}

// JobProgressResponse is the polling view of a run.
type JobProgressResponse struct {
	JobID   string           `json:"jobId"`
	Percent int              `json:"percent"`
	Step    string           `json:"step"`
	Status  models.JobStatus `json:"status"`
	Error   string           `json:"error,omitempty"`
}
