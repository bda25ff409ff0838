package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// LoadConstraints captures hard rules attached to a teaching load.
type LoadConstraints struct {
	AllowedDays        []int    `json:"allowed_days,omitempty"`
	RequiredRoomType   string   `json:"required_room_type,omitempty"`
	RequiredEquipment  []string `json:"required_equipment,omitempty"`
	MinDurationMinutes int      `json:"min_duration_minutes,omitempty"`
	MaxDurationMinutes int      `json:"max_duration_minutes,omitempty"`
}

// TeachingLoad is a required weekly pairing of teacher, subject and class
// with an hour quota. Owned by the surrounding CRUD system; read-only here.
type TeachingLoad struct {
	ID                      string          `db:"id" json:"id"`
	ScheduleID              string          `db:"schedule_id" json:"schedule_id"`
	TeacherID               string          `db:"teacher_id" json:"teacher_id"`
	SubjectID               string          `db:"subject_id" json:"subject_id"`
	ClassID                 string          `db:"class_id" json:"class_id"`
	WeeklyHours             int             `db:"weekly_hours" json:"weekly_hours"`
	PriorityLevel           int             `db:"priority_level" json:"priority_level"`
	PreferredConsecutiveHrs int             `db:"preferred_consecutive_hours" json:"preferred_consecutive_hours"`
	PreferredTimeSlots      []SlotRef       `db:"-" json:"preferred_time_slots,omitempty"`
	UnavailablePeriods      []SlotRef       `db:"-" json:"unavailable_periods,omitempty"`
	IdealDistribution       []int           `db:"-" json:"ideal_distribution,omitempty"`
	Constraints             LoadConstraints `db:"-" json:"constraints"`
	ClassSize               int             `db:"class_size" json:"class_size"`
	RawPreferred            types.JSONText  `db:"preferred_time_slots" json:"-"`
	RawUnavailable          types.JSONText  `db:"unavailable_periods" json:"-"`
	RawDistribution         types.JSONText  `db:"ideal_distribution" json:"-"`
	RawConstraints          types.JSONText  `db:"constraints" json:"-"`
	CreatedAt               time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time       `db:"updated_at" json:"updated_at"`
}

// PlacementRequest is one block of consecutive lesson occurrences derived
// from a teaching load. Exists only within a generation run.
type PlacementRequest struct {
	LoadID      string
	TeacherID   string
	SubjectID   string
	ClassID     string
	BlockLength int
	Sequence    int
	Priority    int
	WeeklyHours int
	ClassSize   int
	Preferred   []SlotRef
	Unavailable []SlotRef
	Ideal       []int
	Constraints LoadConstraints
}

// LoadValidationIssue reports a per-load normalization failure without
// aborting the whole batch.
type LoadValidationIssue struct {
	LoadID  string `json:"load_id"`
	Reason  string `json:"reason"`
	Blocked bool   `json:"blocked"`
}
