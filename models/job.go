package models

import "time"

type RowStatus string

const (
	RowPending       RowStatus = "pending"
	RowRunning       RowStatus = "running"
	RowVerified      RowStatus = "verified"
	RowPendingReview RowStatus = "pending_review"
	RowRejected      RowStatus = "rejected"
	RowFailed        RowStatus = "failed"
)

// Terminal reports whether a row status ends the row's lifecycle.
func (s RowStatus) Terminal() bool {
	switch s {
	case RowVerified, RowPendingReview, RowRejected, RowFailed:
		return true
	}
	return false
}

// rank implements the monotonicity rule: a row never leaves a terminal
// status, and verified is never downgraded.
func (s RowStatus) rank() int {
	switch s {
	case RowPending:
		return 0
	case RowRunning:
		return 1
	case RowPendingReview:
		return 2
	case RowRejected, RowFailed:
		return 3
	case RowVerified:
		return 4
	}
	return 0
}

// CanTransition reports whether a status write from s to next is legal.
// Terminal statuses only admit the PendingReview→Verified upgrade.
func (s RowStatus) CanTransition(next RowStatus) bool {
	if s == next {
		return true
	}
	if !s.Terminal() {
		return true
	}
	return s == RowPendingReview && next == RowVerified
}

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobCancelled JobStatus = "cancelled"
)

// Row is one listing bound for one platform inside a Job.
type Row struct {
	Index    int           `json:"index"`
	Platform string        `json:"platform"`
	Listing  ListingRecord `json:"listing"`
	Status   RowStatus     `json:"status"`
	Kind     string        `json:"kind,omitempty"` // error-kind tag for terminal failures
	Reason   string        `json:"reason,omitempty"`
}

// StepEvent is an append-only labeled progress record. Screenshot is a
// base64 PNG and may be empty when capture degraded to note-only.
type StepEvent struct {
	Label      string    `json:"label"`
	Timestamp  time.Time `json:"timestamp"`
	Screenshot string    `json:"screenshot,omitempty"`
	Note       string    `json:"note,omitempty"`
}

type Job struct {
	ID        string      `json:"id"`
	Status    JobStatus   `json:"status"`
	Rows      []Row       `json:"rows"`
	Steps     []StepEvent `json:"steps"`
	CreatedAt time.Time   `json:"created_at"`
	StartedAt *time.Time  `json:"started_at,omitempty"`
	EndedAt   *time.Time  `json:"ended_at,omitempty"`
}

// Done reports whether every row reached a terminal status.
func (j *Job) Done() bool {
	for i := range j.Rows {
		if !j.Rows[i].Status.Terminal() {
			return false
		}
	}
	return true
}

// Succeeded reports whether every row ended Verified or PendingReview;
// drives the batch-mode exit code.
func (j *Job) Succeeded() bool {
	for i := range j.Rows {
		switch j.Rows[i].Status {
		case RowVerified, RowPendingReview:
		default:
			return false
		}
	}
	return true
}
