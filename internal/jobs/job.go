// Package jobs is the durable ledger tracking one ingestion request's
// lifecycle.
package jobs

import (
	"errors"
	"time"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrNoQueuedJobs  = errors.New("no queued jobs")
	ErrClaimConflict = errors.New("job claim conflict")
)

// Status is the job lifecycle state. Transitions are monotonic forward only:
// queued -> processing -> completed|failed. Terminal states are final.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Result carries the outcome fields populated on completion.
type Result struct {
	ChunksCount      int   `json:"chunksCount"`
	TotalPages       int   `json:"totalPages"`
	ProcessingTimeMs int64 `json:"processingTimeMs"`
}

// Job is one user-submitted ingestion request.
type Job struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Filename     string     `json:"filename"`
	FileSize     int64      `json:"fileSize"`
	FileType     string     `json:"fileType"`
	ContentHash  string     `json:"contentHash"`
	SourceURL    string     `json:"sourceUrl"`
	Status       Status     `json:"status"`
	Progress     int        `json:"progress"`
	Message      string     `json:"message,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	Result       *Result    `json:"result,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
