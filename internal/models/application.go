package models

import "time"

// ApplicationStatus is the lifecycle state of an application record.
type ApplicationStatus string

const (
	StatusPending ApplicationStatus = "PENDING"
	StatusSuccess ApplicationStatus = "SUCCESS"
	StatusFailed  ApplicationStatus = "FAILED"
)

// IsTerminal reports whether the status admits no further transition.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ApplicationJob is the queue payload handed to the automation worker. It is
// ephemeral: it exists only while enqueued and is discarded once claimed and
// reported.
type ApplicationJob struct {
	ApplicationID string `json:"applicationId"`
	UserID        string `json:"userId"`
	JobID         string `json:"jobId"`
	ResumeID      string `json:"resumeId"`
	Platform      string `json:"platform"`
	JobURL        string `json:"jobUrl"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`

	// EntryID is the broker-assigned queue entry id, attached on claim for
	// traceability. Never set by producers.
	EntryID string `json:"entryId,omitempty"`
}

// Application is the persistent origin-side record an ApplicationJob
// represents. Only the origin service mutates Status; the worker triggers the
// transition through the completion callback.
type Application struct {
	ID           string            `json:"id"`
	UserID       string            `json:"userId"`
	JobID        string            `json:"jobId"`
	ResumeID     string            `json:"resumeId"`
	Status       ApplicationStatus `json:"status"`
	AppliedAt    *time.Time        `json:"appliedAt,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// CompletionReport is the body of the worker's terminal-status callback.
type CompletionReport struct {
	Status       ApplicationStatus `json:"status"`
	AppliedAt    *time.Time        `json:"appliedAt,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Platform     string            `json:"platform,omitempty"`
}

// QueueStats are advisory queue counters; all-zero when the broker is down.
type QueueStats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// ApplicationStats is the per-user summary for the stats endpoint.
type ApplicationStats struct {
	Total        int64            `json:"total"`
	AppliedToday int64            `json:"appliedToday"`
	SuccessRate  float64          `json:"successRate"`
	ByStatus     map[string]int64 `json:"byStatus"`
}
