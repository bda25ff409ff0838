package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

func TestJobRegistryLifecycle(t *testing.T) {
	registry := NewJobRegistry(time.Minute)
	registry.Register(models.GenerationJob{ID: "job-1", ScheduleID: "sched-1", Status: models.JobPending}, nil)

	job, ok := registry.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, models.JobPending, job.Status)

	registry.Update("job-1", 40, "searching", models.JobRunning, "")
	job, ok = registry.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, 40, job.Percent)
	assert.Equal(t, "searching", job.Step)
	assert.Equal(t, models.JobRunning, job.Status)

	result := &models.GenerationResult{Status: models.PlacementSucceeded}
	registry.Complete("job-1", models.JobCompleted, result, "")

	stored, job, ok := registry.Result("job-1")
	require.True(t, ok)
	assert.Equal(t, result, stored)
	assert.Equal(t, 100, job.Percent)
	assert.Equal(t, "done", job.Step)
}

func TestJobRegistryTerminalStatusIsSticky(t *testing.T) {
	registry := NewJobRegistry(time.Minute)
	registry.Register(models.GenerationJob{ID: "job-1", Status: models.JobRunning}, nil)
	registry.Complete("job-1", models.JobCancelled, nil, "cancelled by operator")

	registry.Update("job-1", 90, "searching", models.JobRunning, "")

	job, ok := registry.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, models.JobCancelled, job.Status)
	assert.Equal(t, "done", job.Step)
}

func TestJobRegistryCancelFiresHook(t *testing.T) {
	registry := NewJobRegistry(time.Minute)
	fired := false
	registry.Register(models.GenerationJob{ID: "job-1", Status: models.JobRunning}, func() { fired = true })

	assert.True(t, registry.Cancel("job-1"))
	assert.True(t, fired)
}

func TestJobRegistryCancelUnknownJob(t *testing.T) {
	registry := NewJobRegistry(time.Minute)
	assert.False(t, registry.Cancel("missing"))
}

func TestJobRegistryCancelAfterTerminalIsNoop(t *testing.T) {
	registry := NewJobRegistry(time.Minute)
	fired := false
	registry.Register(models.GenerationJob{ID: "job-1", Status: models.JobRunning}, func() { fired = true })
	registry.Complete("job-1", models.JobCompleted, nil, "")

	registry.Cancel("job-1")
	assert.False(t, fired)
}

func TestJobRegistryExpiry(t *testing.T) {
	registry := NewJobRegistry(10 * time.Millisecond)
	registry.Register(models.GenerationJob{ID: "job-1", Status: models.JobPending}, nil)

	time.Sleep(30 * time.Millisecond)

	_, ok := registry.Get("job-1")
	assert.False(t, ok)

	registry.evictExpired()
	registry.mu.RLock()
	assert.Empty(t, registry.items)
	registry.mu.RUnlock()
}
