package cron

import (
	"context"
	"fmt"
	"log/slog"
)

// Flusher is anything whose pending state can be written out on a schedule.
// Defined here to avoid depending on the store package directly.
type Flusher interface {
	Flush() error
}

// FlushJob periodically flushes a store to disk. Message-id mappings
// accumulate in memory between ticks; a missed flush costs at most one
// interval of reply-linkage data.
type FlushJob struct {
	Target       Flusher
	JobName      string // empty = default "store_flush"
	ScheduleExpr string // empty = default "@every 5m"
	Logger       *slog.Logger
}

// Compile-time interface check.
var _ Job = (*FlushJob)(nil)

// Name implements Job.
func (j *FlushJob) Name() string {
	if j.JobName != "" {
		return j.JobName
	}
	return "store_flush"
}

// Schedule implements Job.
func (j *FlushJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "@every 5m"
}

// Run flushes pending state.
func (j *FlushJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: flush cancelled: %w", ctx.Err())
	}
	if err := j.Target.Flush(); err != nil {
		return fmt.Errorf("cron: flush: %w", err)
	}
	return nil
}
