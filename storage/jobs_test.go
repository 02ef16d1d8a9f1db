package storage

import (
	"testing"
	"time"

	"phone_lister/models"
)

func newTestJob(id string) *models.Job {
	return &models.Job{
		ID:        id,
		Status:    models.JobPending,
		CreatedAt: time.Now(),
		Rows: []models.Row{
			{Index: 0, Platform: "acme", Status: models.RowPending},
			{Index: 1, Platform: "beta", Status: models.RowPending},
		},
	}
}

func TestRowStatusMonotonic(t *testing.T) {
	s := NewJobStore()
	s.Put(newTestJob("j1"))

	if err := s.SetRowStatus("j1", 0, models.RowRunning, "", ""); err != nil {
		t.Fatalf("pending->running rejected: %v", err)
	}
	if err := s.SetRowStatus("j1", 0, models.RowRejected, "SubmissionRejected", "price required"); err != nil {
		t.Fatalf("running->rejected rejected: %v", err)
	}

	// Terminal rows never move again.
	if err := s.SetRowStatus("j1", 0, models.RowVerified, "", ""); err == nil {
		t.Fatal("rejected->verified should be refused")
	}
	job, _ := s.Get("j1")
	if job.Rows[0].Status != models.RowRejected {
		t.Fatalf("row status changed to %s", job.Rows[0].Status)
	}
}

func TestPendingReviewUpgrade(t *testing.T) {
	s := NewJobStore()
	s.Put(newTestJob("j1"))

	s.SetRowStatus("j1", 1, models.RowRunning, "", "")
	if err := s.SetRowStatus("j1", 1, models.RowPendingReview, "", "submitted for review"); err != nil {
		t.Fatalf("-> pending_review rejected: %v", err)
	}
	if err := s.SetRowStatus("j1", 1, models.RowVerified, "", "found in inventory"); err != nil {
		t.Fatalf("pending_review->verified should be the one legal upgrade: %v", err)
	}
	if err := s.SetRowStatus("j1", 1, models.RowFailed, "Failed", ""); err == nil {
		t.Fatal("verified->failed should be refused")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewJobStore()
	s.Put(newTestJob("j1"))

	job, _ := s.Get("j1")
	job.Rows[0].Status = models.RowVerified
	job.Status = models.JobCancelled

	fresh, _ := s.Get("j1")
	if fresh.Rows[0].Status != models.RowPending || fresh.Status != models.JobPending {
		t.Fatal("mutating a Get result leaked into the store")
	}
}

func TestJobLifecycleTimestamps(t *testing.T) {
	s := NewJobStore()
	s.Put(newTestJob("j1"))

	s.SetJobStatus("j1", models.JobRunning)
	job, _ := s.Get("j1")
	if job.StartedAt == nil {
		t.Fatal("running job has no StartedAt")
	}
	if job.EndedAt != nil {
		t.Fatal("running job already has EndedAt")
	}

	s.SetJobStatus("j1", models.JobCompleted)
	job, _ = s.Get("j1")
	if job.EndedAt == nil {
		t.Fatal("completed job has no EndedAt")
	}
}

func TestPurgeKeepsLiveJobs(t *testing.T) {
	s := NewJobStore()
	old := newTestJob("old")
	old.Status = models.JobCompleted
	ended := time.Now().UTC().Add(-48 * time.Hour)
	old.EndedAt = &ended
	s.Put(old)

	live := newTestJob("live")
	live.CreatedAt = time.Now().Add(-48 * time.Hour)
	s.Put(live)
	s.SetJobStatus("live", models.JobRunning)

	if n := s.Purge(24 * time.Hour); n != 1 {
		t.Fatalf("expected 1 purged, got %d", n)
	}
	if _, ok := s.Get("old"); ok {
		t.Fatal("terminal old job survived purge")
	}
	if _, ok := s.Get("live"); !ok {
		t.Fatal("running job was purged")
	}
}
