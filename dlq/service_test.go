package dlq_test

import (
	"context"
	"testing"
	"time"

	"github.com/carebridge/scheduler/dlq"
	"github.com/carebridge/scheduler/execution"
	"github.com/carebridge/scheduler/id"
	"github.com/carebridge/scheduler/job"
	"github.com/carebridge/scheduler/store/memory"
)

func failedExecution(t *testing.T, jobID id.JobID) *execution.Execution {
	t.Helper()

	e := execution.New(jobID, "tenant-1", execution.RunnerIdentitySystem, []byte(`{"k":"v"}`), 2, 3)
	now := time.Now().UTC()
	if err := e.MarkRunning(now); err != nil {
		t.Fatal(err)
	}
	if err := e.MarkFailed(now.Add(time.Second), "boom", now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestService_Promote(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := dlq.NewService(st, st, nil)

	jobID := id.NewJobID()
	exec := failedExecution(t, jobID)

	if err := svc.Promote(ctx, exec, string(job.TypeReminders)); err != nil {
		t.Fatalf("Promote error: %v", err)
	}

	entries, err := st.ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("ListDLQ returned %d entries, want 1", len(entries))
	}

	entry := entries[0]
	if entry.JobID != jobID {
		t.Errorf("JobID = %s, want %s", entry.JobID, jobID)
	}
	if entry.ExecutionID != exec.ID {
		t.Errorf("ExecutionID = %s, want %s", entry.ExecutionID, exec.ID)
	}
	if entry.Reason != "boom" {
		t.Errorf("Reason = %q, want boom", entry.Reason)
	}
	if entry.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", entry.RetryAttempts)
	}
	if entry.JobType != "reminders" {
		t.Errorf("JobType = %q, want reminders", entry.JobType)
	}
	if string(entry.InputParams) != `{"k":"v"}` {
		t.Errorf("InputParams = %s", entry.InputParams)
	}
}

func TestService_PromoteBoundsFailureStreak(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := dlq.NewService(st, st, nil)

	jobID := id.NewJobID()
	base := time.Now().UTC().Add(-time.Hour)

	// A success before the streak: its timestamp must not leak into the
	// entry's failure bounds.
	ok := execution.New(jobID, "tenant-1", execution.RunnerIdentitySystem, nil, 0, 3)
	ok.CreatedAt = base
	if err := ok.MarkRunning(base); err != nil {
		t.Fatal(err)
	}
	if err := ok.MarkCompleted(base.Add(time.Second), nil); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateExecution(ctx, ok); err != nil {
		t.Fatal(err)
	}

	// Three consecutive failures, ten minutes apart.
	var last *execution.Execution
	streakStart := base.Add(10 * time.Minute)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(10+10*i) * time.Minute)
		e := execution.New(jobID, "tenant-1", execution.RunnerIdentitySystem, nil, i, 3)
		e.CreatedAt = at
		if err := e.MarkRunning(at); err != nil {
			t.Fatal(err)
		}
		if err := e.MarkFailed(at, "boom", at.Add(time.Minute)); err != nil {
			t.Fatal(err)
		}
		if err := st.CreateExecution(ctx, e); err != nil {
			t.Fatal(err)
		}
		last = e
	}

	if err := svc.Promote(ctx, last, string(job.TypeAggregation)); err != nil {
		t.Fatal(err)
	}

	entries, err := st.ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("ListDLQ returned %d entries, want 1", len(entries))
	}

	entry := entries[0]
	if !entry.FirstFailedAt.Equal(streakStart) {
		t.Errorf("FirstFailedAt = %v, want streak start %v", entry.FirstFailedAt, streakStart)
	}
	if entry.LastFailedAt.Before(entry.FirstFailedAt) {
		t.Errorf("LastFailedAt %v precedes FirstFailedAt %v", entry.LastFailedAt, entry.FirstFailedAt)
	}
}

func TestService_PromoteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := dlq.NewService(st, st, nil)

	exec := failedExecution(t, id.NewJobID())

	if err := svc.Promote(ctx, exec, string(job.TypeAggregation)); err != nil {
		t.Fatal(err)
	}
	if err := svc.Promote(ctx, exec, string(job.TypeAggregation)); err != nil {
		t.Fatalf("duplicate Promote error: %v", err)
	}

	count, err := st.CountDLQ(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("CountDLQ = %d after duplicate promotion, want 1", count)
	}
}

func TestService_BlockedAndResolve(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := dlq.NewService(st, st, nil)

	jobID := id.NewJobID()
	exec := failedExecution(t, jobID)

	blocked, err := svc.Blocked(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if blocked {
		t.Error("Blocked = true before promotion")
	}

	if err := svc.Promote(ctx, exec, string(job.TypeReports)); err != nil {
		t.Fatal(err)
	}
	blocked, err = svc.Blocked(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if !blocked {
		t.Error("Blocked = false after promotion")
	}

	entries, err := st.ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Resolve(ctx, entries[0].ID); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	blocked, err = svc.Blocked(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if blocked {
		t.Error("Blocked = true after resolution")
	}
}

func TestStore_PurgeRemovesResolvedOnly(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := dlq.NewService(st, st, nil)

	resolved := failedExecution(t, id.NewJobID())
	open := failedExecution(t, id.NewJobID())

	if err := svc.Promote(ctx, resolved, string(job.TypeReminders)); err != nil {
		t.Fatal(err)
	}
	if err := svc.Promote(ctx, open, string(job.TypeReminders)); err != nil {
		t.Fatal(err)
	}

	entries, err := st.ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.JobID == resolved.JobID {
			if err := st.ResolveDLQ(ctx, e.ID); err != nil {
				t.Fatal(err)
			}
		}
	}

	purged, err := st.PurgeDLQ(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Errorf("PurgeDLQ removed %d entries, want 1", purged)
	}

	remaining, err := st.ListDLQ(ctx, dlq.ListOpts{IncludeResolved: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].JobID != open.JobID {
		t.Errorf("unresolved entry missing after purge")
	}
}
