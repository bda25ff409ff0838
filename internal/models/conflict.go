package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ConflictType is the closed set of violations the detector recognises.
type ConflictType string

const (
	ConflictTeacher      ConflictType = "teacher_conflict"
	ConflictRoom         ConflictType = "room_conflict"
	ConflictResource     ConflictType = "resource_conflict"
	ConflictTimeOverlap  ConflictType = "time_overlap"
	ConflictCapacity     ConflictType = "capacity_exceeded"
	ConflictScheduleGap  ConflictType = "schedule_gap"
	ConflictDuration     ConflictType = "invalid_duration"
	ConflictBusinessRule ConflictType = "business_rule_violation"
	ConflictOptimization ConflictType = "optimization_suggestion"
)

// AllConflictTypes enumerates every detector rule; order is the scan order.
var AllConflictTypes = []ConflictType{
	ConflictTeacher,
	ConflictRoom,
	ConflictResource,
	ConflictTimeOverlap,
	ConflictCapacity,
	ConflictScheduleGap,
	ConflictDuration,
	ConflictBusinessRule,
	ConflictOptimization,
}

// Valid reports whether the type belongs to the closed set.
func (t ConflictType) Valid() bool {
	for _, known := range AllConflictTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ConflictSeverity ranks how urgent a conflict is.
type ConflictSeverity string

const (
	SeverityLow      ConflictSeverity = "low"
	SeverityMedium   ConflictSeverity = "medium"
	SeverityHigh     ConflictSeverity = "high"
	SeverityCritical ConflictSeverity = "critical"
)

// ConflictStatus tracks the lifecycle of a detected conflict.
type ConflictStatus string

const (
	ConflictOpen     ConflictStatus = "open"
	ConflictResolved ConflictStatus = "resolved"
	ConflictIgnored  ConflictStatus = "ignored"
)

// Conflict is a detected violation or suboptimality in a session set.
// Fingerprint is a deterministic hash of the type plus participant tuple,
// stable across scans while the underlying sessions are unchanged.
type Conflict struct {
	ID           string           `db:"id" json:"id"`
	ScheduleID   string           `db:"schedule_id" json:"schedule_id"`
	Type         ConflictType     `db:"type" json:"type"`
	Severity     ConflictSeverity `db:"severity" json:"severity"`
	Status       ConflictStatus   `db:"status" json:"status"`
	Fingerprint  string           `db:"fingerprint" json:"fingerprint"`
	Description  string           `db:"description" json:"description"`
	Details      types.JSONText   `db:"details" json:"details,omitempty"`
	Suggestion   string           `db:"suggestion" json:"suggestion,omitempty"`
	AutoDetected bool             `db:"auto_detected" json:"auto_detected"`
	SessionIDs   []string         `db:"-" json:"session_ids,omitempty"`
	DetectedAt   time.Time        `db:"detected_at" json:"detected_at"`
	ResolvedAt   *time.Time       `db:"resolved_at" json:"resolved_at,omitempty"`
}
