package service

import (
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// jobEntry pairs the public job view with its final result and expiry.
type jobEntry struct {
	job     models.GenerationJob
	result  *models.GenerationResult
	expires time.Time
	cancel  func()
}

// JobRegistry is the process-wide progress store: one writer per job (the
// run itself), many readers (HTTP pollers). Records expire after a fixed
// TTL to bound memory; a janitor goroutine sweeps them out.
type JobRegistry struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]*jobEntry
	stop  chan struct{}
	once  sync.Once
}

// NewJobRegistry builds a registry with the given record TTL.
func NewJobRegistry(ttl time.Duration) *JobRegistry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &JobRegistry{
		ttl:   ttl,
		items: make(map[string]*jobEntry),
		stop:  make(chan struct{}),
	}
}

// Start launches the TTL janitor. Safe to call once.
func (r *JobRegistry) Start() {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.evictExpired()
			}
		}
	}()
}

// Stop terminates the janitor.
func (r *JobRegistry) Stop() {
	r.once.Do(func() { close(r.stop) })
}

// Register creates a pending job record and stores its cancel hook.
func (r *JobRegistry) Register(job models.GenerationJob, cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[job.ID] = &jobEntry{
		job:     job,
		expires: time.Now().Add(r.ttl),
		cancel:  cancel,
	}
}

// Update replaces the job's progress view atomically. Terminal statuses are
// sticky: once cancelled/completed/failed the record no longer moves.
func (r *JobRegistry) Update(id string, percent int, step string, status models.JobStatus, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.items[id]
	if !ok || entry.job.Status.Terminal() {
		return
	}
	entry.job.Percent = percent
	entry.job.Step = step
	entry.job.Status = status
	entry.job.Error = errMsg
	entry.job.UpdatedAt = time.Now().UTC()
	entry.expires = time.Now().Add(r.ttl)
}

// Complete stores the final result alongside the terminal status.
func (r *JobRegistry) Complete(id string, status models.JobStatus, result *models.GenerationResult, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.items[id]
	if !ok {
		return
	}
	if status == models.JobCompleted {
		entry.job.Percent = 100
	}
	entry.job.Step = "done"
	entry.job.Status = status
	entry.job.Error = errMsg
	entry.job.UpdatedAt = time.Now().UTC()
	entry.result = result
	entry.expires = time.Now().Add(r.ttl)
}

// Get returns the job's progress view.
func (r *JobRegistry) Get(id string) (models.GenerationJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.items[id]
	if !ok || time.Now().After(entry.expires) {
		return models.GenerationJob{}, false
	}
	return entry.job, true
}

// Result returns the stored final result, if the job reached one.
func (r *JobRegistry) Result(id string) (*models.GenerationResult, models.GenerationJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.items[id]
	if !ok || time.Now().After(entry.expires) {
		return nil, models.GenerationJob{}, false
	}
	return entry.result, entry.job, true
}

// Cancel fires the job's cancel hook. Cooperative: the run observes it
// between placement iterations.
func (r *JobRegistry) Cancel(id string) bool {
	r.mu.Lock()
	entry, ok := r.items[id]
	var cancel func()
	if ok && !entry.job.Status.Terminal() {
		cancel = entry.cancel
	}
	r.mu.Unlock()

	if cancel == nil {
		return ok
	}
	cancel()
	return true
}

func (r *JobRegistry) evictExpired() {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, entry := range r.items {
		if now.After(entry.expires) {
			delete(r.items, id)
		}
	}
}
