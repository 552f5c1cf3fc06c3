package model

import "time"

// Import job status values. Jobs are created in_progress, since starting an
// import runs its first batch immediately. A job is terminal once completed
// or failed; failed jobs are never resumed automatically.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ImportJob is the persisted cursor for one batch import run. It is only
// mutated by the coordinator that owns it, one batch at a time.
type ImportJob struct {
	ID            string    `json:"id"`
	BatchSize     int       `json:"batchSize"`
	CurrentOffset int       `json:"currentOffset"`
	TotalItems    int       `json:"totalItems"`
	Status        string    `json:"status"`
	StartedAt     time.Time `json:"startedAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Error         *string   `json:"error,omitempty"`
}

// Terminal reports whether no further automatic progress can occur.
func (j *ImportJob) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// ItemError records a single listing that failed during a batch. The batch
// keeps going; the collected list is serialized into the job's error column.
type ItemError struct {
	ListingID string `json:"listingId"`
	Stage     string `json:"stage"`
	Message   string `json:"message"`
}
