package service

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// defaultPriority is assumed when a load does not set priority_level.
const defaultPriority = 3

// NormalizeLoads expands teaching loads into placement requests: one request
// per block of consecutive hours, following the load's ideal distribution
// when present or an even split otherwise. Per-load problems are reported as
// issues without aborting the batch.
func NormalizeLoads(loads []models.TeachingLoad, grid []models.TimeSlot) ([]models.PlacementRequest, []models.LoadValidationIssue) {
	open := OpenSlots(grid)
	days := workingDaysOf(open)
	openPerDay := len(open)
	if len(days) > 0 {
		openPerDay = len(open) / len(days)
	}

	var requests []models.PlacementRequest
	var issues []models.LoadValidationIssue

	for _, load := range loads {
		if load.WeeklyHours < 1 {
			issues = append(issues, models.LoadValidationIssue{
				LoadID:  load.ID,
				Reason:  "weekly_hours must be at least 1",
				Blocked: true,
			})
			continue
		}
		if load.TeacherID == "" || load.ClassID == "" || load.SubjectID == "" {
			issues = append(issues, models.LoadValidationIssue{
				LoadID:  load.ID,
				Reason:  "teacher_id, subject_id and class_id are required",
				Blocked: true,
			})
			continue
		}
		if load.WeeklyHours > len(open) {
			issues = append(issues, models.LoadValidationIssue{
				LoadID:  load.ID,
				Reason:  fmt.Sprintf("weekly_hours %d exceeds %d open slots in the grid", load.WeeklyHours, len(open)),
				Blocked: true,
			})
			continue
		}

		blocks := splitIntoBlocks(load, openPerDay)
		priority := load.PriorityLevel
		if priority == 0 {
			priority = defaultPriority
		}
		for seq, length := range blocks {
			requests = append(requests, models.PlacementRequest{
				LoadID:      load.ID,
				TeacherID:   load.TeacherID,
				SubjectID:   load.SubjectID,
				ClassID:     load.ClassID,
				BlockLength: length,
				Sequence:    seq + 1,
				Priority:    priority,
				WeeklyHours: load.WeeklyHours,
				ClassSize:   load.ClassSize,
				Preferred:   load.PreferredTimeSlots,
				Unavailable: load.UnavailablePeriods,
				Ideal:       load.IdealDistribution,
				Constraints: load.Constraints,
			})
		}
	}
	return requests, issues
}

// splitIntoBlocks partitions weekly hours into consecutive-hour blocks no
// longer than the load's preference (default 1). An ideal distribution such
// as [2 2 1] wins over the even split, with each per-day target further cut
// to the block-length cap.
func splitIntoBlocks(load models.TeachingLoad, openPerDay int) []int {
	maxBlock := load.PreferredConsecutiveHrs
	if maxBlock < 1 {
		maxBlock = 1
	}
	if openPerDay > 0 && maxBlock > openPerDay {
		maxBlock = openPerDay
	}

	var targets []int
	if len(load.IdealDistribution) > 0 {
		remaining := load.WeeklyHours
		for _, target := range load.IdealDistribution {
			if remaining <= 0 {
				break
			}
			if target > remaining {
				target = remaining
			}
			if target > 0 {
				targets = append(targets, target)
				remaining -= target
			}
		}
		for remaining > 0 {
			chunk := maxBlock
			if chunk > remaining {
				chunk = remaining
			}
			targets = append(targets, chunk)
			remaining -= chunk
		}
	} else {
		remaining := load.WeeklyHours
		for remaining > 0 {
			chunk := maxBlock
			if chunk > remaining {
				chunk = remaining
			}
			targets = append(targets, chunk)
			remaining -= chunk
		}
	}

	var blocks []int
	for _, target := range targets {
		for target > maxBlock {
			blocks = append(blocks, maxBlock)
			target -= maxBlock
		}
		if target > 0 {
			blocks = append(blocks, target)
		}
	}
	return blocks
}

func workingDaysOf(slots []models.TimeSlot) []int {
	unique := make(map[int]struct{})
	for _, slot := range slots {
		unique[slot.DayOfWeek] = struct{}{}
	}
	days := make([]int, 0, len(unique))
	for day := range unique {
		days = append(days, day)
	}
	sort.Ints(days)
	return days
}
