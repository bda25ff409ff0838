package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

func strPtr(s string) *string { return &s }

func detectorGrid(t *testing.T) []models.TimeSlot {
	t.Helper()
	grid, err := BuildTimeGrid(models.GenerationSettings{
		WorkingDays:    []int{1, 2},
		DailyPeriods:   6,
		PeriodDuration: 45,
	})
	require.NoError(t, err)
	return grid
}

func conflictsOfType(conflicts []models.Conflict, conflictType models.ConflictType) []models.Conflict {
	var matched []models.Conflict
	for _, conflict := range conflicts {
		if conflict.Type == conflictType {
			matched = append(matched, conflict)
		}
	}
	return matched
}

func TestDetectConflictsCleanScheduleIsEmpty(t *testing.T) {
	conflicts := DetectConflicts(ConflictSnapshot{
		ScheduleID: "sched-1",
		Grid:       detectorGrid(t),
		Sessions: []models.Session{
			{ID: "s1", TeacherID: "t1", ClassID: "10a", SubjectID: "math", DayOfWeek: 1, PeriodNumber: 1},
			{ID: "s2", TeacherID: "t2", ClassID: "10a", SubjectID: "bio", DayOfWeek: 1, PeriodNumber: 2},
		},
	})
	assert.Empty(t, conflicts)
}

func TestDetectTeacherDoubleBooking(t *testing.T) {
	conflicts := DetectConflicts(ConflictSnapshot{
		ScheduleID: "sched-1",
		Grid:       detectorGrid(t),
		Sessions: []models.Session{
			{ID: "s1", TeacherID: "t1", ClassID: "10a", DayOfWeek: 1, PeriodNumber: 1},
			{ID: "s2", TeacherID: "t1", ClassID: "10b", DayOfWeek: 1, PeriodNumber: 1},
		},
	})

	teacher := conflictsOfType(conflicts, models.ConflictTeacher)
	require.Len(t, teacher, 1)
	assert.Equal(t, models.SeverityCritical, teacher[0].Severity)
	assert.Equal(t, models.ConflictOpen, teacher[0].Status)
	assert.True(t, teacher[0].AutoDetected)
	assert.ElementsMatch(t, []string{"s1", "s2"}, teacher[0].SessionIDs)
	assert.NotEmpty(t, teacher[0].Fingerprint)
}

func TestDetectRoomDoubleBooking(t *testing.T) {
	conflicts := DetectConflicts(ConflictSnapshot{
		ScheduleID: "sched-1",
		Grid:       detectorGrid(t),
		Rooms:      []models.Room{{ID: "r1", Capacity: 30}},
		Sessions: []models.Session{
			{ID: "s1", TeacherID: "t1", ClassID: "10a", RoomID: strPtr("r1"), DayOfWeek: 1, PeriodNumber: 1},
			{ID: "s2", TeacherID: "t2", ClassID: "10b", RoomID: strPtr("r1"), DayOfWeek: 1, PeriodNumber: 1},
		},
	})

	room := conflictsOfType(conflicts, models.ConflictRoom)
	require.Len(t, room, 1)
	assert.Equal(t, models.SeverityHigh, room[0].Severity)
}

func TestDetectScheduleGap(t *testing.T) {
	conflicts := DetectConflicts(ConflictSnapshot{
		ScheduleID: "sched-1",
		Grid:       detectorGrid(t),
		Sessions: []models.Session{
			{ID: "s1", TeacherID: "t1", ClassID: "10a", DayOfWeek: 1, PeriodNumber: 1},
			{ID: "s2", TeacherID: "t2", ClassID: "10a", DayOfWeek: 1, PeriodNumber: 4},
		},
	})

	gaps := conflictsOfType(conflicts, models.ConflictScheduleGap)
	require.Len(t, gaps, 1)
	assert.Equal(t, models.SeverityMedium, gaps[0].Severity)
	assert.Contains(t, gaps[0].Description, "2-period gap")
}

func TestDetectCapacityAndResourceAndRoomType(t *testing.T) {
	loads := []models.TeachingLoad{
		{
			ID: "l1", ClassSize: 40,
			Constraints: models.LoadConstraints{RequiredRoomType: "lab", RequiredEquipment: []string{"bunsen"}},
		},
	}
	rooms := []models.Room{{ID: "r1", Capacity: 30, Type: "standard"}}
	conflicts := DetectConflicts(ConflictSnapshot{
		ScheduleID: "sched-1",
		Grid:       detectorGrid(t),
		Loads:      loads,
		Rooms:      rooms,
		Sessions: []models.Session{
			{ID: "s1", TeachingLoadID: "l1", TeacherID: "t1", ClassID: "10a", RoomID: strPtr("r1"), DayOfWeek: 1, PeriodNumber: 1},
		},
	})

	require.Len(t, conflictsOfType(conflicts, models.ConflictCapacity), 1)
	require.Len(t, conflictsOfType(conflicts, models.ConflictResource), 1)
	require.Len(t, conflictsOfType(conflicts, models.ConflictBusinessRule), 1)
	assert.Equal(t, models.SeverityMedium, conflictsOfType(conflicts, models.ConflictResource)[0].Severity)
}

func TestDetectInvalidDuration(t *testing.T) {
	loads := []models.TeachingLoad{
		{ID: "l1", Constraints: models.LoadConstraints{MinDurationMinutes: 60}},
	}
	conflicts := DetectConflicts(ConflictSnapshot{
		ScheduleID: "sched-1",
		Grid:       detectorGrid(t), // 45-minute periods
		Loads:      loads,
		Sessions: []models.Session{
			{ID: "s1", TeachingLoadID: "l1", TeacherID: "t1", ClassID: "10a", DayOfWeek: 1, PeriodNumber: 1},
		},
	})

	durations := conflictsOfType(conflicts, models.ConflictDuration)
	require.Len(t, durations, 1)
	assert.Contains(t, durations[0].Description, "45 minutes")
}

func TestDetectOptimizationSuggestion(t *testing.T) {
	loads := []models.TeachingLoad{
		{ID: "l1", WeeklyHours: 2, PreferredConsecutiveHrs: 2},
	}
	conflicts := DetectConflicts(ConflictSnapshot{
		ScheduleID: "sched-1",
		Grid:       detectorGrid(t),
		Loads:      loads,
		Sessions: []models.Session{
			{ID: "s1", TeachingLoadID: "l1", TeacherID: "t1", ClassID: "10a", DayOfWeek: 1, PeriodNumber: 1},
			{ID: "s2", TeachingLoadID: "l1", TeacherID: "t1", ClassID: "10a", DayOfWeek: 2, PeriodNumber: 3},
		},
	})

	suggestions := conflictsOfType(conflicts, models.ConflictOptimization)
	require.Len(t, suggestions, 1)
	assert.Equal(t, models.SeverityLow, suggestions[0].Severity)

	// paired sessions silence the suggestion
	paired := DetectConflicts(ConflictSnapshot{
		ScheduleID: "sched-1",
		Grid:       detectorGrid(t),
		Loads:      loads,
		Sessions: []models.Session{
			{ID: "s1", TeachingLoadID: "l1", TeacherID: "t1", ClassID: "10a", DayOfWeek: 1, PeriodNumber: 1},
			{ID: "s2", TeachingLoadID: "l1", TeacherID: "t1", ClassID: "10a", DayOfWeek: 1, PeriodNumber: 2},
		},
	})
	assert.Empty(t, conflictsOfType(paired, models.ConflictOptimization))
}

func TestDetectConflictsFingerprintsAreStable(t *testing.T) {
	snapshot := ConflictSnapshot{
		ScheduleID: "sched-1",
		Grid:       detectorGrid(t),
		Sessions: []models.Session{
			{ID: "s1", TeacherID: "t1", ClassID: "10a", DayOfWeek: 1, PeriodNumber: 1},
			{ID: "s2", TeacherID: "t1", ClassID: "10b", DayOfWeek: 1, PeriodNumber: 1},
		},
	}

	first := DetectConflicts(snapshot)
	second := DetectConflicts(snapshot)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Fingerprint, second[i].Fingerprint)
	}
}

func TestDetectConflictsOrderedByTaxonomy(t *testing.T) {
	loads := []models.TeachingLoad{
		{ID: "l1", Constraints: models.LoadConstraints{RequiredRoomType: "lab"}},
	}
	conflicts := DetectConflicts(ConflictSnapshot{
		ScheduleID: "sched-1",
		Grid:       detectorGrid(t),
		Loads:      loads,
		Sessions: []models.Session{
			{ID: "s1", TeachingLoadID: "l1", TeacherID: "t1", ClassID: "10a", DayOfWeek: 1, PeriodNumber: 1},
			{ID: "s2", TeacherID: "t1", ClassID: "10b", DayOfWeek: 1, PeriodNumber: 1},
		},
	})

	require.GreaterOrEqual(t, len(conflicts), 2)
	// teacher conflicts come before business rule violations in scan order
	assert.Equal(t, models.ConflictTeacher, conflicts[0].Type)
}
