package runner_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/carebridge/scheduler"
	"github.com/carebridge/scheduler/backoff"
	"github.com/carebridge/scheduler/execution"
	"github.com/carebridge/scheduler/id"
	"github.com/carebridge/scheduler/job"
	"github.com/carebridge/scheduler/runner"
	"github.com/carebridge/scheduler/store/memory"
)

func handlerOf(t job.Type, fn func(context.Context, id.ExecutionID, string) (json.RawMessage, error)) job.Handler {
	return job.HandlerFunc{JobType: t, Fn: fn}
}

func okHandler(t job.Type) job.Handler {
	return handlerOf(t, func(context.Context, id.ExecutionID, string) (json.RawMessage, error) {
		return json.RawMessage(`{"ok":true}`), nil
	})
}

func dueJob(name string, typ job.Type) *job.Definition {
	past := time.Now().UTC().Add(-time.Minute)
	return &job.Definition{
		Entity:    scheduler.NewEntity(),
		ID:        id.NewJobID(),
		TenantID:  "tenant-1",
		Name:      name,
		Type:      typ,
		Enabled:   true,
		NextRunAt: &past,
	}
}

func TestRunScheduledJobs_EndToEnd(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	registry := job.NewRegistry()
	if err := registry.Register(okHandler(job.TypeReminders)); err != nil {
		t.Fatal(err)
	}

	def := dueJob("evening-reminders", job.TypeReminders)
	if err := st.CreateJob(ctx, def); err != nil {
		t.Fatal(err)
	}

	r := runner.New(st, registry)
	summary, err := r.RunScheduledJobs(ctx)
	if err != nil {
		t.Fatalf("RunScheduledJobs error: %v", err)
	}

	if summary.JobsRun != 1 || summary.JobsFailed != 0 || summary.JobsSkipped != 0 {
		t.Fatalf("summary = run %d / failed %d / skipped %d, want 1/0/0",
			summary.JobsRun, summary.JobsFailed, summary.JobsSkipped)
	}
	if summary.Runner != execution.RunnerIdentitySystem {
		t.Errorf("summary.Runner = %q, want system", summary.Runner)
	}

	// Exactly one execution, completed, attributed to the system runner.
	execs, err := st.ListExecutions(ctx, execution.ListOpts{JobID: def.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(execs) != 1 {
		t.Fatalf("ledger has %d executions, want 1", len(execs))
	}
	e := execs[0]
	if e.Status != execution.StatusCompleted {
		t.Errorf("execution status = %s, want completed", e.Status)
	}
	if e.RunnerIdentity != execution.RunnerIdentitySystem {
		t.Errorf("runner identity = %q, want system", e.RunnerIdentity)
	}
	if string(e.OutputResult) != `{"ok":true}` {
		t.Errorf("output = %s", e.OutputResult)
	}
	if e.CompletedAt == nil || e.StartedAt == nil || e.CompletedAt.Before(*e.StartedAt) {
		t.Error("completed_at precedes started_at")
	}

	// Bookkeeping on the definition.
	got, err := st.GetJob(ctx, def.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastRunAt == nil {
		t.Error("LastRunAt not stamped")
	}
	if got.NextRunAt == nil || !got.NextRunAt.After(time.Now().UTC().Add(30*time.Minute)) {
		t.Errorf("NextRunAt = %v, want advanced by the reschedule interval", got.NextRunAt)
	}

	// The lock must not survive the tick.
	if _, err := st.GetJobLock(ctx, def.ID); !errors.Is(err, scheduler.ErrLockNotFound) {
		t.Errorf("GetJobLock after tick = %v, want ErrLockNotFound", err)
	}
}

func TestRunNow_StampsManualIdentity(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	registry := job.NewRegistry()
	if err := registry.Register(okHandler(job.TypeReports)); err != nil {
		t.Fatal(err)
	}
	def := dueJob("monthly-reports", job.TypeReports)
	if err := st.CreateJob(ctx, def); err != nil {
		t.Fatal(err)
	}

	summary, err := runner.New(st, registry).RunNow(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Runner != execution.RunnerIdentityManual {
		t.Errorf("summary.Runner = %q, want manual", summary.Runner)
	}

	e, err := st.LatestExecutionForJob(ctx, def.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e.RunnerIdentity != execution.RunnerIdentityManual {
		t.Errorf("runner identity = %q, want manual", e.RunnerIdentity)
	}
}

func TestRun_BatchIsolation(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	registry := job.NewRegistry()

	if err := registry.Register(handlerOf(job.TypeAggregation, func(context.Context, id.ExecutionID, string) (json.RawMessage, error) {
		panic("aggregation handler bug")
	})); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register(okHandler(job.TypeReminders)); err != nil {
		t.Fatal(err)
	}

	bad := dueJob("broken-aggregation", job.TypeAggregation)
	good := dueJob("healthy-reminders", job.TypeReminders)
	for _, d := range []*job.Definition{bad, good} {
		if err := st.CreateJob(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	summary, err := runner.New(st, registry).RunScheduledJobs(ctx)
	if err != nil {
		t.Fatalf("RunScheduledJobs error: %v", err)
	}

	if summary.JobsRun != 1 || summary.JobsFailed != 1 {
		t.Fatalf("summary = run %d / failed %d, want 1/1", summary.JobsRun, summary.JobsFailed)
	}

	goodExec, err := st.LatestExecutionForJob(ctx, good.ID)
	if err != nil {
		t.Fatal(err)
	}
	if goodExec.Status != execution.StatusCompleted {
		t.Errorf("healthy job status = %s, want completed despite sibling panic", goodExec.Status)
	}

	badExec, err := st.LatestExecutionForJob(ctx, bad.ID)
	if err != nil {
		t.Fatal(err)
	}
	if badExec.Status != execution.StatusFailed {
		t.Errorf("panicking job status = %s, want failed", badExec.Status)
	}
	if !strings.Contains(badExec.ErrorMessage, "aggregation handler bug") {
		t.Errorf("error message %q does not carry the panic value", badExec.ErrorMessage)
	}

	// Neither lock leaks.
	for _, d := range []*job.Definition{bad, good} {
		if _, err := st.GetJobLock(ctx, d.ID); !errors.Is(err, scheduler.ErrLockNotFound) {
			t.Errorf("lock for %s survived the tick", d.Name)
		}
	}
}

func TestRun_UnknownJobTypeFailsThatJobOnly(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	registry := job.NewRegistry() // reports deliberately unregistered

	def := dueJob("orphaned-reports", job.TypeReports)
	if err := st.CreateJob(ctx, def); err != nil {
		t.Fatal(err)
	}

	summary, err := runner.New(st, registry).RunScheduledJobs(ctx)
	if err != nil {
		t.Fatalf("RunScheduledJobs error: %v", err)
	}
	if summary.JobsFailed != 1 {
		t.Fatalf("JobsFailed = %d, want 1", summary.JobsFailed)
	}

	e, err := st.LatestExecutionForJob(ctx, def.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != execution.StatusFailed {
		t.Errorf("status = %s, want failed", e.Status)
	}
	if !strings.Contains(e.ErrorMessage, scheduler.ErrUnknownJobType.Error()) {
		t.Errorf("error message %q, want unknown job type", e.ErrorMessage)
	}
	if e.BackoffUntil == nil {
		t.Error("misconfigured job got no backoff deadline")
	}
}

func TestRun_TerminalPromotionAndExclusion(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	registry := job.NewRegistry()

	if err := registry.Register(handlerOf(job.TypeAggregation, func(context.Context, id.ExecutionID, string) (json.RawMessage, error) {
		return nil, fmt.Errorf("downstream unavailable")
	})); err != nil {
		t.Fatal(err)
	}

	def := dueJob("doomed-aggregation", job.TypeAggregation)
	def.MaxRetries = 3
	if err := st.CreateJob(ctx, def); err != nil {
		t.Fatal(err)
	}

	// Zero backoff and zero reschedule delay so consecutive ticks retry
	// immediately.
	r := runner.New(st, registry,
		runner.WithBackoff(backoff.NewConstant(0)),
		runner.WithRescheduleInterval(0),
	)

	for i := 1; i <= 3; i++ {
		time.Sleep(time.Millisecond)
		summary, err := r.RunScheduledJobs(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if summary.JobsFailed != 1 {
			t.Fatalf("tick %d: JobsFailed = %d, want 1", i, summary.JobsFailed)
		}
	}

	// Exactly one DLQ entry despite three failures.
	count, err := st.CountDLQ(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("CountDLQ = %d after retry exhaustion, want 1", count)
	}

	latest, err := st.LatestExecutionForJob(ctx, def.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.RetryCount != 3 {
		t.Errorf("final RetryCount = %d, want 3", latest.RetryCount)
	}

	// A fourth tick must not select the dead-lettered job.
	time.Sleep(time.Millisecond)
	summary, err := r.RunScheduledJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.JobsSkipped != 1 || summary.JobsFailed != 0 {
		t.Fatalf("post-DLQ tick = skipped %d / failed %d, want 1/0", summary.JobsSkipped, summary.JobsFailed)
	}
	total, err := st.CountExecutions(ctx, execution.CountOpts{JobID: def.ID})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("execution count = %d after DLQ promotion, want 3", total)
	}
}

func TestRun_SkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	registry := job.NewRegistry()
	if err := registry.Register(okHandler(job.TypeReminders)); err != nil {
		t.Fatal(err)
	}

	def := dueJob("contended-reminders", job.TypeReminders)
	if err := st.CreateJob(ctx, def); err != nil {
		t.Fatal(err)
	}

	// Another runner instance holds the lock.
	acquired, err := st.AcquireJobLock(ctx, def.ID, id.NewExecutionID(), time.Minute)
	if err != nil || !acquired {
		t.Fatalf("seed lock: acquired=%v err=%v", acquired, err)
	}

	summary, err := runner.New(st, registry).RunScheduledJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.JobsSkipped != 1 {
		t.Fatalf("JobsSkipped = %d, want 1", summary.JobsSkipped)
	}

	// A lost lock race leaves no ledger trace.
	count, err := st.CountExecutions(ctx, execution.CountOpts{JobID: def.ID})
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("execution count = %d after skip, want 0", count)
	}
}

func TestRun_RecoversJobAbandonedByCrashedHolder(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	registry := job.NewRegistry()
	if err := registry.Register(okHandler(job.TypeReminders)); err != nil {
		t.Fatal(err)
	}

	def := dueJob("interrupted-reminders", job.TypeReminders)
	if err := st.CreateJob(ctx, def); err != nil {
		t.Fatal(err)
	}

	// A previous runner crashed mid-handler: its execution is stuck in
	// RUNNING, far older than any lock TTL, and its lock has expired away.
	stale := execution.New(def.ID, def.TenantID, execution.RunnerIdentitySystem, nil, 0, 3)
	if err := stale.MarkRunning(time.Now().UTC().Add(-24 * time.Hour)); err != nil {
		t.Fatal(err)
	}
	stale.CreatedAt = time.Now().UTC().Add(-24 * time.Hour)
	if err := st.CreateExecution(ctx, stale); err != nil {
		t.Fatal(err)
	}

	summary, err := runner.New(st, registry).RunScheduledJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.JobsRun != 1 || summary.JobsSkipped != 0 {
		t.Fatalf("summary = run %d / skipped %d, want 1/0: abandoned execution must not wedge the job",
			summary.JobsRun, summary.JobsSkipped)
	}

	latest, err := st.LatestExecutionForJob(ctx, def.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID == stale.ID {
		t.Fatal("tick did not create a fresh execution")
	}
	if latest.Status != execution.StatusCompleted {
		t.Errorf("re-attempt status = %s, want completed", latest.Status)
	}
}

func TestRun_FreshInFlightExecutionStillBlocks(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	registry := job.NewRegistry()
	if err := registry.Register(okHandler(job.TypeReminders)); err != nil {
		t.Fatal(err)
	}

	def := dueJob("live-reminders", job.TypeReminders)
	if err := st.CreateJob(ctx, def); err != nil {
		t.Fatal(err)
	}

	// A handler started seconds ago on another instance is still live.
	live := execution.New(def.ID, def.TenantID, execution.RunnerIdentitySystem, nil, 0, 3)
	if err := live.MarkRunning(time.Now().UTC().Add(-10 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateExecution(ctx, live); err != nil {
		t.Fatal(err)
	}

	summary, err := runner.New(st, registry).RunScheduledJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.JobsSkipped != 1 || summary.JobsRun != 0 {
		t.Fatalf("summary = run %d / skipped %d, want 0/1", summary.JobsRun, summary.JobsSkipped)
	}
}

func TestRun_HonorsBatchSize(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	registry := job.NewRegistry()
	if err := registry.Register(okHandler(job.TypeReminders)); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if err := st.CreateJob(ctx, dueJob(fmt.Sprintf("batch-%d", i), job.TypeReminders)); err != nil {
			t.Fatal(err)
		}
	}

	summary, err := runner.New(st, registry, runner.WithBatchSize(2)).RunScheduledJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Results) != 2 {
		t.Errorf("processed %d jobs, want batch size 2", len(summary.Results))
	}
}
