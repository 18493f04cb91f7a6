package cron

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

type fakeFlusher struct {
	calls int
	err   error
}

func (f *fakeFlusher) Flush() error {
	f.calls++
	return f.err
}

func TestFlushJob_Defaults(t *testing.T) {
	t.Parallel()

	j := &FlushJob{Target: &fakeFlusher{}, Logger: slog.Default()}
	if got := j.Name(); got != "store_flush" {
		t.Errorf("Name() = %q, want store_flush", got)
	}
	if got := j.Schedule(); got != "@every 5m" {
		t.Errorf("Schedule() = %q, want @every 5m", got)
	}
}

func TestFlushJob_Overrides(t *testing.T) {
	t.Parallel()

	j := &FlushJob{
		Target:       &fakeFlusher{},
		JobName:      "chatid_flush",
		ScheduleExpr: "@every 1m",
	}
	if got := j.Name(); got != "chatid_flush" {
		t.Errorf("Name() = %q, want chatid_flush", got)
	}
	if got := j.Schedule(); got != "@every 1m" {
		t.Errorf("Schedule() = %q, want @every 1m", got)
	}
}

func TestFlushJob_Run(t *testing.T) {
	t.Parallel()

	f := &fakeFlusher{}
	j := &FlushJob{Target: f, Logger: slog.Default()}

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.calls != 1 {
		t.Fatalf("Flush called %d times, want 1", f.calls)
	}
}

func TestFlushJob_RunError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("disk full")
	j := &FlushJob{Target: &fakeFlusher{err: wantErr}, Logger: slog.Default()}

	err := j.Run(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run error = %v, want wrapped %v", err, wantErr)
	}
}

func TestFlushJob_RunCancelled(t *testing.T) {
	t.Parallel()

	f := &fakeFlusher{}
	j := &FlushJob{Target: f, Logger: slog.Default()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := j.Run(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if f.calls != 0 {
		t.Fatal("Flush ran despite cancelled context")
	}
}
