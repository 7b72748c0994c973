// Package entity defines the domain models for the detection feature.
package entity

import "time"

// JobStatus is the lifecycle state of a batch run.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// JobRun records one execution of a named batch job, for the status surface
// and the stale-run watchdog.
type JobRun struct {
	ID         uint
	Name       string
	Status     JobStatus
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}
