package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

func engineGrid(t *testing.T, days []int, periods int) []models.TimeSlot {
	t.Helper()
	grid, err := BuildTimeGrid(models.GenerationSettings{
		WorkingDays:    days,
		DailyPeriods:   periods,
		PeriodDuration: 45,
	})
	require.NoError(t, err)
	return grid
}

func assertNoDoubleBookings(t *testing.T, sessions []models.Session) {
	t.Helper()
	teacherCells := make(map[string]bool)
	classCells := make(map[string]bool)
	for _, session := range sessions {
		teacherKey := fmt.Sprintf("%s|%d|%d", session.TeacherID, session.DayOfWeek, session.PeriodNumber)
		require.False(t, teacherCells[teacherKey], "teacher double booked at %s", teacherKey)
		teacherCells[teacherKey] = true

		classKey := fmt.Sprintf("%s|%d|%d", session.ClassID, session.DayOfWeek, session.PeriodNumber)
		require.False(t, classCells[classKey], "class double booked at %s", classKey)
		classCells[classKey] = true
	}
}

func TestRunPlacementSpreadsBlocksAcrossDays(t *testing.T) {
	grid := engineGrid(t, []int{1, 2, 3, 4, 5}, 6)
	loads := []models.TeachingLoad{
		{
			ID:                      "math-10a",
			TeacherID:               "t1",
			SubjectID:               "math",
			ClassID:                 "10a",
			WeeklyHours:             4,
			PreferredConsecutiveHrs: 2,
		},
	}
	requests, issues := NormalizeLoads(loads, grid)
	require.Empty(t, issues)
	require.Len(t, requests, 2)

	outcome := RunPlacement(context.Background(), PlacementInput{
		ScheduleID: "sched-1",
		Grid:       grid,
		Requests:   requests,
	}, nil)

	assert.Equal(t, models.PlacementSucceeded, outcome.Status)
	require.Len(t, outcome.Sessions, 4)
	assertNoDoubleBookings(t, outcome.Sessions)

	// 2-hour blocks land on two distinct days
	days := make(map[int]int)
	for _, session := range outcome.Sessions {
		days[session.DayOfWeek]++
	}
	require.Len(t, days, 2)
	for day, hours := range days {
		assert.Equal(t, 2, hours, "day %d should carry one full block", day)
	}
}

func TestRunPlacementKeepsBlocksConsecutive(t *testing.T) {
	grid, err := BuildTimeGrid(models.GenerationSettings{
		WorkingDays:    []int{1},
		DailyPeriods:   4,
		PeriodDuration: 45,
		BreakPeriods:   []int{2},
		BreakDuration:  15,
	})
	require.NoError(t, err)

	requests := []models.PlacementRequest{
		{LoadID: "l1", TeacherID: "t1", SubjectID: "math", ClassID: "10a", BlockLength: 2, Sequence: 1, Priority: 3, WeeklyHours: 2,
			Unavailable: []models.SlotRef{{DayOfWeek: 1, PeriodNumber: 1}}},
	}
	outcome := RunPlacement(context.Background(), PlacementInput{ScheduleID: "s", Grid: grid, Requests: requests}, nil)

	require.Len(t, outcome.Sessions, 2)
	// window 2-3 would span the break after period 2, so 3-4 is the only fit
	assert.Equal(t, 3, outcome.Sessions[0].PeriodNumber)
	assert.Equal(t, 4, outcome.Sessions[1].PeriodNumber)
}

func TestRunPlacementIsDeterministic(t *testing.T) {
	grid := engineGrid(t, []int{1, 2, 3}, 5)
	loads := []models.TeachingLoad{
		{ID: "l-b", TeacherID: "t2", SubjectID: "bio", ClassID: "10a", WeeklyHours: 3, PriorityLevel: 3},
		{ID: "l-a", TeacherID: "t1", SubjectID: "math", ClassID: "10a", WeeklyHours: 4, PriorityLevel: 4, PreferredConsecutiveHrs: 2},
		{ID: "l-c", TeacherID: "t1", SubjectID: "math", ClassID: "10b", WeeklyHours: 3, PriorityLevel: 3},
	}
	requests, _ := NormalizeLoads(loads, grid)
	input := PlacementInput{ScheduleID: "sched-det", Grid: grid, Requests: requests}

	first := RunPlacement(context.Background(), input, nil)
	second := RunPlacement(context.Background(), input, nil)

	assert.Equal(t, first.Sessions, second.Sessions)
	assert.Equal(t, first.Log, second.Log)
	assert.Equal(t, first.Stats, second.Stats)
}

func TestRunPlacementOverloadedTeacherPartialSuccess(t *testing.T) {
	// one teacher, two classes, but only 4 open slots per class and
	// 6 requested hours for the same teacher
	grid := engineGrid(t, []int{1, 2}, 2)
	loads := []models.TeachingLoad{
		{ID: "l1", TeacherID: "t1", SubjectID: "math", ClassID: "10a", WeeklyHours: 3},
		{ID: "l2", TeacherID: "t1", SubjectID: "math", ClassID: "10b", WeeklyHours: 3},
	}
	requests, issues := NormalizeLoads(loads, grid)
	require.Empty(t, issues)

	outcome := RunPlacement(context.Background(), PlacementInput{ScheduleID: "s", Grid: grid, Requests: requests}, nil)

	assert.Equal(t, models.PlacementPartiallySucceeded, outcome.Status)
	assert.Len(t, outcome.Sessions, 4)
	require.Len(t, outcome.Unplaced, 2)
	assertNoDoubleBookings(t, outcome.Sessions)
	for _, unplaced := range outcome.Unplaced {
		assert.NotEmpty(t, unplaced.Reason)
	}
}

func TestRunPlacementFailsWhenNothingFits(t *testing.T) {
	grid := engineGrid(t, []int{1}, 2)
	requests := []models.PlacementRequest{
		{
			LoadID: "l1", TeacherID: "t1", SubjectID: "math", ClassID: "10a",
			BlockLength: 1, Sequence: 1, Priority: 3, WeeklyHours: 1,
			Unavailable: []models.SlotRef{{DayOfWeek: 0, PeriodNumber: 1}, {DayOfWeek: 0, PeriodNumber: 2}},
		},
	}
	outcome := RunPlacement(context.Background(), PlacementInput{ScheduleID: "s", Grid: grid, Requests: requests}, nil)

	assert.Equal(t, models.PlacementFailed, outcome.Status)
	assert.Empty(t, outcome.Sessions)
	require.Len(t, outcome.Unplaced, 1)
	assert.Equal(t, "teacher unavailable period", outcome.Unplaced[0].Reason)
}

func TestRunPlacementHonoursRoomConstraints(t *testing.T) {
	grid := engineGrid(t, []int{1}, 2)
	rooms := []models.Room{
		{ID: "lab-1", Name: "Science Lab", Capacity: 30, Type: "lab", Equipment: []string{"bunsen"}},
		{ID: "room-1", Name: "Standard", Capacity: 36, Type: "standard"},
	}
	requests := []models.PlacementRequest{
		{
			LoadID: "l1", TeacherID: "t1", SubjectID: "chem", ClassID: "10a",
			BlockLength: 1, Sequence: 1, Priority: 3, WeeklyHours: 1, ClassSize: 28,
			Constraints: models.LoadConstraints{RequiredRoomType: "lab", RequiredEquipment: []string{"bunsen"}},
		},
	}
	outcome := RunPlacement(context.Background(), PlacementInput{ScheduleID: "s", Grid: grid, Requests: requests, Rooms: rooms}, nil)

	require.Len(t, outcome.Sessions, 1)
	require.NotNil(t, outcome.Sessions[0].RoomID)
	assert.Equal(t, "lab-1", *outcome.Sessions[0].RoomID)
}

func TestRunPlacementHonoursBusySessions(t *testing.T) {
	grid := engineGrid(t, []int{1}, 2)
	busy := []models.Session{
		{ScheduleID: "other", TeacherID: "t1", ClassID: "9z", DayOfWeek: 1, PeriodNumber: 1},
	}
	requests := []models.PlacementRequest{
		{LoadID: "l1", TeacherID: "t1", SubjectID: "math", ClassID: "10a", BlockLength: 1, Sequence: 1, Priority: 3, WeeklyHours: 1},
	}
	outcome := RunPlacement(context.Background(), PlacementInput{ScheduleID: "s", Grid: grid, Requests: requests, Busy: busy}, nil)

	require.Len(t, outcome.Sessions, 1)
	assert.Equal(t, 2, outcome.Sessions[0].PeriodNumber, "committed session elsewhere blocks period 1")
}

func TestRunPlacementRepairMovesLowerPriorityBlock(t *testing.T) {
	grid := engineGrid(t, []int{1}, 2)
	requests := []models.PlacementRequest{
		// placed first, takes period 1
		{LoadID: "flexible", TeacherID: "t1", SubjectID: "art", ClassID: "10a", BlockLength: 1, Sequence: 1, Priority: 3, WeeklyHours: 1},
		// only period 1 works: period 2 unavailable, teacher busy at 1 after the first placement
		{LoadID: "stuck", TeacherID: "t1", SubjectID: "math", ClassID: "10b", BlockLength: 1, Sequence: 1, Priority: 3, WeeklyHours: 1,
			Unavailable: []models.SlotRef{{DayOfWeek: 1, PeriodNumber: 2}}},
	}

	outcome := RunPlacement(context.Background(), PlacementInput{ScheduleID: "s", Grid: grid, Requests: requests}, nil)

	assert.Equal(t, models.PlacementSucceeded, outcome.Status)
	require.Len(t, outcome.Sessions, 2)
	assertNoDoubleBookings(t, outcome.Sessions)
	assert.Equal(t, 1, outcome.Stats.RepairMoves)

	var sawRepair bool
	for _, entry := range outcome.Log {
		if entry.Action == models.LogActionRepairedMove {
			sawRepair = true
			assert.Equal(t, "flexible", entry.LoadID)
			assert.Equal(t, 2, entry.PeriodNumber)
		}
	}
	assert.True(t, sawRepair)

	for _, session := range outcome.Sessions {
		if session.TeachingLoadID == "stuck" {
			assert.Equal(t, 1, session.PeriodNumber)
		}
	}
}

func TestRunPlacementCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	grid := engineGrid(t, []int{1, 2}, 4)
	requests := []models.PlacementRequest{
		{LoadID: "l1", TeacherID: "t1", SubjectID: "math", ClassID: "10a", BlockLength: 1, Sequence: 1, Priority: 3, WeeklyHours: 1},
	}
	outcome := RunPlacement(ctx, PlacementInput{ScheduleID: "s", Grid: grid, Requests: requests}, nil)

	assert.Equal(t, models.PlacementCancelled, outcome.Status)
	assert.Empty(t, outcome.Sessions)
}

func TestRunPlacementPrefersListedSlots(t *testing.T) {
	grid := engineGrid(t, []int{1, 2}, 4)
	requests := []models.PlacementRequest{
		{
			LoadID: "l1", TeacherID: "t1", SubjectID: "math", ClassID: "10a",
			BlockLength: 1, Sequence: 1, Priority: 3, WeeklyHours: 1,
			Preferred: []models.SlotRef{{DayOfWeek: 2, PeriodNumber: 3}},
		},
	}
	outcome := RunPlacement(context.Background(), PlacementInput{ScheduleID: "s", Grid: grid, Requests: requests}, nil)

	require.Len(t, outcome.Sessions, 1)
	assert.Equal(t, 2, outcome.Sessions[0].DayOfWeek)
	assert.Equal(t, 3, outcome.Sessions[0].PeriodNumber)
	assert.Equal(t, 1, outcome.Stats.PreferenceHits)
}

func TestRunPlacementProgressCallback(t *testing.T) {
	grid := engineGrid(t, []int{1}, 4)
	requests := []models.PlacementRequest{
		{LoadID: "l1", TeacherID: "t1", SubjectID: "math", ClassID: "10a", BlockLength: 1, Sequence: 1, Priority: 3, WeeklyHours: 2},
		{LoadID: "l1", TeacherID: "t1", SubjectID: "math", ClassID: "10a", BlockLength: 1, Sequence: 2, Priority: 3, WeeklyHours: 2},
	}

	var calls []int
	RunPlacement(context.Background(), PlacementInput{ScheduleID: "s", Grid: grid, Requests: requests}, func(done, total int) {
		assert.Equal(t, 2, total)
		calls = append(calls, done)
	})
	assert.Equal(t, []int{1, 2}, calls)
}
