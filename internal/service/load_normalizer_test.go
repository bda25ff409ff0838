package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

func normalizerGrid(t *testing.T) []models.TimeSlot {
	t.Helper()
	grid, err := BuildTimeGrid(models.GenerationSettings{
		WorkingDays:    []int{1, 2, 3, 4, 5},
		DailyPeriods:   6,
		PeriodDuration: 45,
	})
	require.NoError(t, err)
	return grid
}

func TestNormalizeLoadsSplitsIntoBlocks(t *testing.T) {
	grid := normalizerGrid(t)
	loads := []models.TeachingLoad{
		{
			ID:                      "load-math",
			TeacherID:               "t1",
			SubjectID:               "math",
			ClassID:                 "10a",
			WeeklyHours:             4,
			PreferredConsecutiveHrs: 2,
			PriorityLevel:           5,
		},
	}

	requests, issues := NormalizeLoads(loads, grid)
	assert.Empty(t, issues)
	require.Len(t, requests, 2)

	for i, req := range requests {
		assert.Equal(t, "load-math", req.LoadID)
		assert.Equal(t, 2, req.BlockLength)
		assert.Equal(t, i+1, req.Sequence)
		assert.Equal(t, 5, req.Priority)
	}
}

func TestNormalizeLoadsHonoursIdealDistribution(t *testing.T) {
	grid := normalizerGrid(t)
	loads := []models.TeachingLoad{
		{
			ID:                      "load-sci",
			TeacherID:               "t2",
			SubjectID:               "science",
			ClassID:                 "10b",
			WeeklyHours:             5,
			PreferredConsecutiveHrs: 2,
			IdealDistribution:       []int{2, 2, 1},
		},
	}

	requests, issues := NormalizeLoads(loads, grid)
	assert.Empty(t, issues)
	require.Len(t, requests, 3)
	assert.Equal(t, 2, requests[0].BlockLength)
	assert.Equal(t, 2, requests[1].BlockLength)
	assert.Equal(t, 1, requests[2].BlockLength)
}

func TestNormalizeLoadsDefaultsSingleHourBlocks(t *testing.T) {
	grid := normalizerGrid(t)
	loads := []models.TeachingLoad{
		{ID: "load-en", TeacherID: "t3", SubjectID: "english", ClassID: "10a", WeeklyHours: 3},
	}

	requests, issues := NormalizeLoads(loads, grid)
	assert.Empty(t, issues)
	require.Len(t, requests, 3)
	for _, req := range requests {
		assert.Equal(t, 1, req.BlockLength)
		assert.Equal(t, defaultPriority, req.Priority)
	}
}

func TestNormalizeLoadsReportsBlockedIssues(t *testing.T) {
	grid := normalizerGrid(t)
	loads := []models.TeachingLoad{
		{ID: "zero-hours", TeacherID: "t1", SubjectID: "math", ClassID: "10a", WeeklyHours: 0},
		{ID: "missing-ids", TeacherID: "", SubjectID: "math", ClassID: "10a", WeeklyHours: 2},
		{ID: "too-many", TeacherID: "t1", SubjectID: "math", ClassID: "10a", WeeklyHours: 31},
		{ID: "fine", TeacherID: "t1", SubjectID: "math", ClassID: "10a", WeeklyHours: 2},
	}

	requests, issues := NormalizeLoads(loads, grid)
	require.Len(t, issues, 3)
	for _, issue := range issues {
		assert.True(t, issue.Blocked)
	}
	assert.Equal(t, "zero-hours", issues[0].LoadID)
	assert.Equal(t, "missing-ids", issues[1].LoadID)
	assert.Equal(t, "too-many", issues[2].LoadID)

	// the valid load still normalizes
	require.Len(t, requests, 2)
	assert.Equal(t, "fine", requests[0].LoadID)
}

func TestSplitIntoBlocksCapsAtOpenPerDay(t *testing.T) {
	load := models.TeachingLoad{WeeklyHours: 4, PreferredConsecutiveHrs: 6}
	blocks := splitIntoBlocks(load, 3)
	assert.Equal(t, []int{3, 1}, blocks)
}
