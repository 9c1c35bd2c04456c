package store

import "time"

// Status is the lifecycle state of an analysis job.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether the status is absorbing. Terminal jobs are
// never updated again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known job status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Job is one analysis request tracked from submission to completion.
type Job struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Query     string    `json:"query"`
	FileName  string    `json:"file_name"`
	FilePath  string    `json:"-"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
