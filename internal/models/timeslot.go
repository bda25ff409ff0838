package models

// TimeSlot is one (day, period) cell in the weekly grid derived from generation settings.
type TimeSlot struct {
	DayOfWeek       int    `json:"day_of_week"`
	PeriodNumber    int    `json:"period_number"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
	IsBreak         bool   `json:"is_break"`
}

// GenerationSettings describes the institution's weekly grid shape.
type GenerationSettings struct {
	ScheduleID       string `db:"schedule_id" json:"schedule_id,omitempty"`
	WorkingDays      []int  `db:"working_days" json:"working_days" validate:"required,min=1,max=7,dive,min=1,max=7"`
	DailyPeriods     int    `db:"daily_periods" json:"daily_periods" validate:"required,min=1,max=10"`
	PeriodDuration   int    `db:"period_duration" json:"period_duration" validate:"required,min=5,max=120"`
	BreakPeriods     []int  `db:"break_periods" json:"break_periods" validate:"omitempty,dive,min=1"`
	LunchBreakPeriod int    `db:"lunch_break_period" json:"lunch_break_period" validate:"omitempty,min=0"`
	FirstPeriodStart string `db:"first_period_start" json:"first_period_start"`
	BreakDuration    int    `db:"break_duration" json:"break_duration" validate:"omitempty,min=0,max=60"`
	LunchDuration    int    `db:"lunch_duration" json:"lunch_duration" validate:"omitempty,min=0,max=120"`
}

// SlotRef addresses a teaching period inside the grid.
type SlotRef struct {
	DayOfWeek    int `json:"day_of_week"`
	PeriodNumber int `json:"period_number"`
}
