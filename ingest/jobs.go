package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	// JobDegraded means the index holds everything but at least one
	// durable mirror write failed.
	JobDegraded JobState = "degraded"
	JobFailed   JobState = "failed"
)

// Job tracks one background ingestion run, so callers can poll
// instead of inferring completion from side effects.
type Job struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	State      JobState  `json:"state"`
	Processed  []string  `json:"processed"`
	Skipped    []string  `json:"skipped"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type JobRegistry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func NewJobRegistry() *JobRegistry {
	return &JobRegistry{
		jobs: make(map[string]*Job),
	}
}

func (r *JobRegistry) Create(collection string) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := &Job{
		ID:         uuid.NewString(),
		Collection: collection,
		State:      JobQueued,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	r.jobs[job.ID] = job
	return job
}

// Get returns a copy; the registry's own Job is mutated by the
// background worker.
func (r *JobRegistry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	copied := *job
	copied.Processed = append([]string(nil), job.Processed...)
	copied.Skipped = append([]string(nil), job.Skipped...)
	return copied, true
}

func (r *JobRegistry) start(id string) {
	r.update(id, func(j *Job) { j.State = JobRunning })
}

func (r *JobRegistry) finish(id string, degraded bool) {
	r.update(id, func(j *Job) {
		j.State = JobSucceeded
		if degraded {
			j.State = JobDegraded
		}
	})
}

func (r *JobRegistry) fail(id string, err error) {
	r.update(id, func(j *Job) {
		j.State = JobFailed
		j.Error = err.Error()
	})
}

func (r *JobRegistry) addProcessed(id, sourceID string) {
	r.update(id, func(j *Job) { j.Processed = append(j.Processed, sourceID) })
}

func (r *JobRegistry) addSkipped(id, sourceID string) {
	r.update(id, func(j *Job) { j.Skipped = append(j.Skipped, sourceID) })
}

func (r *JobRegistry) update(id string, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[id]; ok {
		fn(job)
		job.UpdatedAt = time.Now()
	}
}
