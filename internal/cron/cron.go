// Package cron provides a job scheduler for periodic background tasks
// such as flushing the message-id store to disk.
package cron

import "context"

// Job defines a periodic background task.
type Job interface {
	// Name returns a unique identifier for this job (used for logging and dedup).
	Name() string

	// Schedule returns a cron expression, either 5-field ("*/5 * * * *")
	// or a descriptor ("@every 5m").
	Schedule() string

	// Run executes the job. Implementations should check ctx.Done() for
	// graceful cancellation.
	Run(ctx context.Context) error
}
