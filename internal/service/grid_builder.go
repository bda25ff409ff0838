package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

const defaultFirstPeriodStart = "07:00"

// BuildTimeGrid derives the ordered list of schedulable slots from the
// institution's generation settings. Pure; invalid settings fail the whole
// run before search begins.
func BuildTimeGrid(settings models.GenerationSettings) ([]models.TimeSlot, error) {
	if settings.DailyPeriods < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dailyPeriods must be at least 1")
	}
	if settings.PeriodDuration < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "periodDuration must be positive")
	}

	days := normalizeWorkingDays(settings.WorkingDays)
	if len(days) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "workingDays must contain at least one day between 1-7")
	}

	breakAfter := make(map[int]bool, len(settings.BreakPeriods))
	for _, period := range settings.BreakPeriods {
		if period < 1 || period >= settings.DailyPeriods {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("break period %d outside of 1-%d", period, settings.DailyPeriods-1))
		}
		if breakAfter[period] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("break period %d listed twice", period))
		}
		breakAfter[period] = true
	}
	if settings.LunchBreakPeriod != 0 {
		if settings.LunchBreakPeriod < 1 || settings.LunchBreakPeriod >= settings.DailyPeriods {
			return nil, appErrors.Clone(appErrors.ErrValidation, "lunchBreakPeriod outside of working periods")
		}
		if breakAfter[settings.LunchBreakPeriod] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "lunchBreakPeriod overlaps a break period")
		}
	}

	startRef := settings.FirstPeriodStart
	if startRef == "" {
		startRef = defaultFirstPeriodStart
	}
	dayStart, err := time.Parse("15:04", startRef)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("firstPeriodStart %q is not HH:MM", settings.FirstPeriodStart))
	}

	grid := make([]models.TimeSlot, 0, len(days)*(settings.DailyPeriods+len(breakAfter)+1))
	for _, day := range days {
		cursor := dayStart
		for period := 1; period <= settings.DailyPeriods; period++ {
			end := cursor.Add(time.Duration(settings.PeriodDuration) * time.Minute)
			grid = append(grid, models.TimeSlot{
				DayOfWeek:       day,
				PeriodNumber:    period,
				StartTime:       cursor.Format("15:04"),
				EndTime:         end.Format("15:04"),
				DurationMinutes: settings.PeriodDuration,
				IsBreak:         false,
			})
			cursor = end

			pause := 0
			if breakAfter[period] {
				pause = settings.BreakDuration
			} else if settings.LunchBreakPeriod == period {
				pause = settings.LunchDuration
			}
			if pause > 0 {
				pauseEnd := cursor.Add(time.Duration(pause) * time.Minute)
				grid = append(grid, models.TimeSlot{
					DayOfWeek:       day,
					PeriodNumber:    period,
					StartTime:       cursor.Format("15:04"),
					EndTime:         pauseEnd.Format("15:04"),
					DurationMinutes: pause,
					IsBreak:         true,
				})
				cursor = pauseEnd
			}
		}
	}
	return grid, nil
}

// OpenSlots filters a grid down to schedulable cells.
func OpenSlots(grid []models.TimeSlot) []models.TimeSlot {
	open := make([]models.TimeSlot, 0, len(grid))
	for _, slot := range grid {
		if !slot.IsBreak {
			open = append(open, slot)
		}
	}
	return open
}

func normalizeWorkingDays(days []int) []int {
	unique := make(map[int]struct{})
	for _, day := range days {
		if day < 1 || day > 7 {
			continue
		}
		unique[day] = struct{}{}
	}
	result := make([]int, 0, len(unique))
	for day := range unique {
		result = append(result, day)
	}
	sort.Ints(result)
	return result
}
