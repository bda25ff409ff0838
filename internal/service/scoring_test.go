package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

func TestResolveScoringWeightsNoOverrides(t *testing.T) {
	weights, err := ResolveScoringWeights(nil)
	require.NoError(t, err)
	assert.Nil(t, weights)
}

func TestResolveScoringWeightsMergesOverDefaults(t *testing.T) {
	weights, err := ResolveScoringWeights(map[string]float64{
		"preferredSlot": 0,
		"gap":           9,
	})
	require.NoError(t, err)
	require.NotNil(t, weights)
	assert.Zero(t, weights.PreferredSlot)
	assert.Equal(t, 9.0, weights.Gap)
	assert.Equal(t, DefaultScoringWeights().Adjacency, weights.Adjacency)
	assert.Equal(t, DefaultScoringWeights().Distribution, weights.Distribution)
}

func TestResolveScoringWeightsRejectsUnknownKey(t *testing.T) {
	_, err := ResolveScoringWeights(map[string]float64{"adjacent": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adjacent")
}

func TestRunPlacementWeightOverridesChangeRanking(t *testing.T) {
	grid := engineGrid(t, []int{1, 2}, 4)
	requests := []models.PlacementRequest{
		{
			LoadID: "l1", TeacherID: "t1", SubjectID: "math", ClassID: "10a",
			BlockLength: 1, Sequence: 1, Priority: 3, WeeklyHours: 1,
			Preferred: []models.SlotRef{{DayOfWeek: 2, PeriodNumber: 3}},
		},
	}

	// With the preference bonus zeroed every candidate scores equally, so the
	// earliest slot wins instead of the listed one.
	muted := RunPlacement(context.Background(), PlacementInput{
		ScheduleID: "s",
		Grid:       grid,
		Requests:   requests,
		Weights:    &ScoringWeights{PreferredSlot: 0},
	}, nil)
	require.Len(t, muted.Sessions, 1)
	assert.Equal(t, 1, muted.Sessions[0].DayOfWeek)
	assert.Equal(t, 1, muted.Sessions[0].PeriodNumber)

	defaulted := RunPlacement(context.Background(), PlacementInput{
		ScheduleID: "s",
		Grid:       grid,
		Requests:   requests,
	}, nil)
	require.Len(t, defaulted.Sessions, 1)
	assert.Equal(t, 2, defaulted.Sessions[0].DayOfWeek)
	assert.Equal(t, 3, defaulted.Sessions[0].PeriodNumber)
}
