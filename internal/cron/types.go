package cron

import (
	"context"
	"time"
)

// JobType identifies which background maintenance task a job runs.
type JobType string

const (
	// JobTypeSessionSweep clears expired entries from the routing session
	// stickiness cache, a time-driven backstop for low-traffic deployments
	// that might never hit the sweep-every-100-writes trigger.
	JobTypeSessionSweep JobType = "session_sweep"

	// JobTypeCentroidRebuild reloads classifier centroids from a directory
	// of prototype-update files, when one is configured.
	JobTypeCentroidRebuild JobType = "centroid_rebuild"

	// JobTypeCustom runs an arbitrary registered handler, for operator
	// extensions beyond the two built-in maintenance jobs.
	JobTypeCustom JobType = "custom"
)

// Job is one scheduled background task.
type Job struct {
	ID       string
	Name     string
	Type     JobType
	Enabled  bool
	CronExpr string

	NextRun    time.Time
	LastRun    time.Time
	LastError  string
	RetryCount int
}

// Handler runs a job's work. Returning an error marks the execution failed
// but never stops the scheduler.
type Handler interface {
	Handle(ctx context.Context, job *Job) error
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, job *Job) error

// Handle runs the handler function.
func (f HandlerFunc) Handle(ctx context.Context, job *Job) error {
	return f(ctx, job)
}
