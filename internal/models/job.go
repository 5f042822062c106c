package models

import "time"

// Platform identifies the external job site an application targets.
const (
	PlatformLinkedIn = "LINKEDIN"
	PlatformIndeed   = "INDEED"
)

// Job is a catalog entry produced by discovery and consumed by scoring and
// application submission. URL is unique across the catalog.
type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Platform    string    `json:"platform"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Salary      string    `json:"salary,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ScoredJob is a catalog entry annotated with a resume match score in [0,10].
type ScoredJob struct {
	Job
	MatchScore float64 `json:"matchScore"`
}

// JobFilter narrows catalog listings.
type JobFilter struct {
	Platform string
	MinScore float64
	Limit    int
}

// AutomationSchedule is a per-user auto-apply schedule walked by the daily
// cron run.
type AutomationSchedule struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	CronExpression string    `json:"cronExpression"`
	MaxJobsPerDay  int       `json:"maxJobsPerDay"`
	Platforms      []string  `json:"platforms"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
