package dto

import "github.com/noah-isme/sma-timetable-engine/internal/models"

// ConflictScanResponse returns the outcome of a conflict scan.
type ConflictScanResponse struct {
	ScheduleID string            `json:"scheduleId"`
	Conflicts  []models.Conflict `json:"conflicts"`
	FromCache  bool              `json:"fromCache"`
}

// ResolveConflictResponse lists sessions changed by an automatic fix.
type ResolveConflictResponse struct {
	ConflictID string           `json:"conflictId"`
	Sessions   []models.Session `json:"changedSessions"`
}

// ConflictQuery filters stored conflicts.
type ConflictQuery struct {
	Status string `form:"status" json:"status" binding:"omitempty,oneof=open resolved ignored"`
	Type   string `form:"type" json:"type"`
}
