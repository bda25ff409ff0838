package models

import "time"

// Session is one placed lesson occurrence in the weekly grid.
type Session struct {
	ID             string    `db:"id" json:"id"`
	ScheduleID     string    `db:"schedule_id" json:"schedule_id"`
	TeachingLoadID string    `db:"teaching_load_id" json:"teaching_load_id"`
	TeacherID      string    `db:"teacher_id" json:"teacher_id"`
	SubjectID      string    `db:"subject_id" json:"subject_id"`
	ClassID        string    `db:"class_id" json:"class_id"`
	RoomID         *string   `db:"room_id" json:"room_id,omitempty"`
	DayOfWeek      int       `db:"day_of_week" json:"day_of_week"`
	PeriodNumber   int       `db:"period_number" json:"period_number"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	ScheduleID string
	TeacherID  string
	ClassID    string
	DayOfWeek  int
}
