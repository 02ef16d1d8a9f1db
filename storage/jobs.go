// Package storage holds job state. The in-memory store is authoritative;
// the SQLite journal and Postgres archive are write-behind mirrors whose
// failures degrade to log lines, never to job failures.
package storage

import (
	"fmt"
	"sync"
	"time"

	"phone_lister/models"
)

type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*models.Job)}
}

func (s *JobStore) Put(job *models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

// Get returns a deep-enough copy for readers: rows and steps are copied so
// callers never observe a slice mid-append.
func (s *JobStore) Get(jobID string) (*models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	out := *job
	out.Rows = append([]models.Row(nil), job.Rows...)
	out.Steps = append([]models.StepEvent(nil), job.Steps...)
	return &out, true
}

func (s *JobStore) SetJobStatus(jobID string, status models.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	now := time.Now().UTC()
	switch status {
	case models.JobRunning:
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
	case models.JobCompleted, models.JobCancelled:
		if job.EndedAt == nil {
			job.EndedAt = &now
		}
	}
	job.Status = status
}

// SetRowStatus enforces the monotonicity rule: terminal statuses only admit
// the PendingReview→Verified upgrade, and Verified is never downgraded.
func (s *JobStore) SetRowStatus(jobID string, rowIndex int, status models.RowStatus, kind, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("unknown job %s", jobID)
	}
	if rowIndex < 0 || rowIndex >= len(job.Rows) {
		return fmt.Errorf("job %s has no row %d", jobID, rowIndex)
	}

	row := &job.Rows[rowIndex]
	if !row.Status.CanTransition(status) {
		return fmt.Errorf("row %d: illegal transition %s -> %s", rowIndex, row.Status, status)
	}
	row.Status = status
	if status.Terminal() {
		row.Kind = kind
		row.Reason = reason
	}
	return nil
}

// AppendStep records a step event; append-only, tolerant of out-of-order
// arrival within one job.
func (s *JobStore) AppendStep(jobID string, ev models.StepEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		job.Steps = append(job.Steps, ev)
	}
}

// Purge drops terminal jobs older than the retention window and returns how
// many were removed.
func (s *JobStore) Purge(olderThan time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	removed := 0
	for id, job := range s.jobs {
		if job.EndedAt != nil && job.EndedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// RunningJobs lists jobs still in flight, for the deadline watchdog.
func (s *JobStore) RunningJobs() []*models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Job
	for _, job := range s.jobs {
		if job.Status == models.JobRunning {
			copy := *job
			out = append(out, &copy)
		}
	}
	return out
}
