package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge/scheduler"
	"github.com/carebridge/scheduler/execution"
	"github.com/carebridge/scheduler/job"
)

// Result statuses reported per job in a tick summary.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// JobResult is the outcome of one job's processing within a tick.
type JobResult struct {
	JobID       string `json:"job_id"`
	JobName     string `json:"job_name"`
	JobType     string `json:"job_type"`
	Status      string `json:"status"`
	ExecutionID string `json:"execution_id,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
	Error       string `json:"error,omitempty"`
	SkipReason  string `json:"skip_reason,omitempty"`
}

// Summary is the structured result of one runner tick.
type Summary struct {
	Timestamp   time.Time   `json:"timestamp"`
	Runner      string      `json:"runner"`
	JobsRun     int         `json:"jobs_run"`
	JobsSkipped int         `json:"jobs_skipped"`
	JobsFailed  int         `json:"jobs_failed"`
	Results     []JobResult `json:"results"`
}

// RunScheduledJobs advances the system by one tick on behalf of the
// external scheduled trigger. Executions are stamped with runner identity
// "system".
func (r *Runner) RunScheduledJobs(ctx context.Context) (*Summary, error) {
	return r.run(ctx, execution.RunnerIdentitySystem)
}

// RunNow is the manual trigger: semantically identical to
// RunScheduledJobs, but executions are stamped "manual".
func (r *Runner) RunNow(ctx context.Context) (*Summary, error) {
	return r.run(ctx, execution.RunnerIdentityManual)
}

func (r *Runner) run(ctx context.Context, identity string) (*Summary, error) {
	now := time.Now().UTC()

	due, err := r.jobs.ListDueJobs(ctx, now, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("list due jobs: %w", err)
	}

	summary := &Summary{
		Timestamp: now,
		Runner:    identity,
		Results:   make([]JobResult, 0, len(due)),
	}

	// Failures are isolated per job: one job's outcome never aborts the
	// rest of the batch.
	for _, def := range due {
		res := r.runJob(ctx, def, identity)
		summary.Results = append(summary.Results, res)

		switch res.Status {
		case StatusCompleted:
			summary.JobsRun++
		case StatusFailed:
			summary.JobsFailed++
		case StatusSkipped:
			summary.JobsSkipped++
		}
	}

	r.logger.Info("runner tick finished",
		slog.String("runner", identity),
		slog.Int("jobs_run", summary.JobsRun),
		slog.Int("jobs_skipped", summary.JobsSkipped),
		slog.Int("jobs_failed", summary.JobsFailed),
	)

	return summary, nil
}

// runJob processes a single due job definition. It never propagates an
// error: every outcome is folded into the JobResult so the batch continues.
func (r *Runner) runJob(ctx context.Context, def *job.Definition, identity string) (res JobResult) {
	res = JobResult{
		JobID:   def.ID.String(),
		JobName: def.Name,
		JobType: string(def.Type),
	}
	now := time.Now().UTC()

	// Dead-lettered jobs are out of rotation until a human resolves them.
	blocked, err := r.deadLetters.Blocked(ctx, def.ID)
	if err != nil {
		return r.failProcessing(res, err)
	}
	if blocked {
		res.Status = StatusSkipped
		res.SkipReason = "dead-lettered"
		return res
	}

	// An in-flight execution, or a failed one still backing off, blocks
	// rescheduling. In-flight rows older than the lock TTL are left over
	// from a crashed holder, whose lock has expired; they do not block,
	// so the tick can re-attempt the job. Overlap with a still-live
	// handler is the accepted cost of that recovery path.
	blocked, err = r.executions.HasBlockingExecution(ctx, def.ID, now, r.lockTTL)
	if err != nil {
		return r.failProcessing(res, err)
	}
	if blocked {
		res.Status = StatusSkipped
		res.SkipReason = "execution in flight or backing off"
		return res
	}

	maxRetries := def.MaxRetries
	if maxRetries <= 0 {
		maxRetries = r.defaultMaxRetries
	}
	exec := execution.New(def.ID, def.TenantID, identity, def.Config, r.carriedRetryCount(ctx, def), maxRetries)

	// Lock contention is an expected outcome, not an error. Nothing has
	// been persisted yet, so a lost race leaves no trace.
	acquired, err := r.locks.Acquire(ctx, def.ID, exec.ID, r.lockTTL)
	if err != nil {
		return r.failProcessing(res, err)
	}
	if !acquired {
		res.Status = StatusSkipped
		res.SkipReason = "lock held by another runner"
		return res
	}

	// Release runs on every exit path: a bug or crash inside one handler
	// must not leak this job's lock into the next tick.
	defer func() {
		if relErr := r.locks.Release(ctx, def.ID); relErr != nil {
			r.logger.Error("release job lock error",
				slog.String("job_id", def.ID.String()),
				slog.String("error", relErr.Error()),
			)
		}
	}()

	if err := r.executions.CreateExecution(ctx, exec); err != nil {
		return r.failProcessing(res, err)
	}
	res.ExecutionID = exec.ID.String()

	if err := r.startExecution(ctx, exec, def, now); err != nil {
		return r.failProcessing(res, err)
	}

	output, handlerErr := r.dispatch(ctx, exec, def)
	end := time.Now().UTC()

	if handlerErr != nil {
		return r.reconcileFailure(ctx, res, exec, def, handlerErr, end)
	}
	return r.reconcileSuccess(ctx, res, exec, def, output, end)
}

// startExecution flips the ledger row to RUNNING and stamps the
// definition's last run time.
func (r *Runner) startExecution(ctx context.Context, exec *execution.Execution, def *job.Definition, now time.Time) error {
	if err := exec.MarkRunning(now); err != nil {
		return err
	}
	if err := r.executions.UpdateExecution(ctx, exec); err != nil {
		return err
	}
	if err := r.jobs.UpdateJobLastRun(ctx, def.ID, now); err != nil {
		// Bookkeeping only; the attempt proceeds.
		r.logger.Warn("update job last run error",
			slog.String("job_id", def.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// dispatch resolves the handler for the definition's type and runs it
// through the middleware chain. An unregistered type is a configuration
// defect that fails this job only.
func (r *Runner) dispatch(ctx context.Context, exec *execution.Execution, def *job.Definition) ([]byte, error) {
	handler, ok := r.registry.Get(def.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", scheduler.ErrUnknownJobType, def.Type)
	}

	var output []byte
	terminal := func(ctx context.Context) error {
		out, err := handler.Execute(ctx, exec.ID, exec.TenantID)
		output = out
		return err
	}

	if err := r.chain(ctx, exec, terminal); err != nil {
		return nil, err
	}
	return output, nil
}

func (r *Runner) reconcileSuccess(ctx context.Context, res JobResult, exec *execution.Execution, def *job.Definition, output []byte, now time.Time) JobResult {
	if err := exec.MarkCompleted(now, output); err != nil {
		return r.failProcessing(res, err)
	}
	if err := r.executions.UpdateExecution(ctx, exec); err != nil {
		return r.failProcessing(res, err)
	}

	r.advanceNextRun(ctx, def, now)

	res.Status = StatusCompleted
	res.DurationMS = exec.DurationMS
	return res
}

func (r *Runner) reconcileFailure(ctx context.Context, res JobResult, exec *execution.Execution, def *job.Definition, handlerErr error, now time.Time) JobResult {
	delay := r.bo.Delay(exec.RetryCount + 1)
	if err := exec.MarkFailed(now, handlerErr.Error(), now.Add(delay)); err != nil {
		return r.failProcessing(res, err)
	}
	if err := r.executions.UpdateExecution(ctx, exec); err != nil {
		return r.failProcessing(res, err)
	}

	if exec.ExhaustedRetries() {
		if err := r.deadLetters.Promote(ctx, exec, string(def.Type)); err != nil {
			r.logger.Error("dlq promotion error",
				slog.String("job_id", def.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	r.advanceNextRun(ctx, def, now)

	configDefect := errors.Is(handlerErr, scheduler.ErrUnknownJobType)
	if configDefect {
		r.logger.Error("job misconfigured",
			slog.String("job_id", def.ID.String()),
			slog.String("job_type", string(def.Type)),
			slog.String("error", handlerErr.Error()),
		)
	} else {
		r.logger.Warn("job execution failed",
			slog.String("job_id", def.ID.String()),
			slog.String("execution_id", exec.ID.String()),
			slog.Int("retry_count", exec.RetryCount),
			slog.Int("max_retries", exec.MaxRetries),
			slog.Duration("backoff", delay),
			slog.String("error", handlerErr.Error()),
		)
	}

	res.Status = StatusFailed
	res.DurationMS = exec.DurationMS
	res.Error = handlerErr.Error()
	return res
}

// failProcessing records an infrastructure failure (store error, invalid
// transition) against the batch summary. It deliberately does not touch
// the ledger: the execution row, if one exists, keeps whatever state the
// failure left it in.
func (r *Runner) failProcessing(res JobResult, err error) JobResult {
	r.logger.Error("job processing error",
		slog.String("job_id", res.JobID),
		slog.String("error", err.Error()),
	)
	res.Status = StatusFailed
	res.Error = err.Error()
	return res
}

// carriedRetryCount inherits the consecutive-failure counter from the
// job's most recent execution. A completed run resets the streak.
func (r *Runner) carriedRetryCount(ctx context.Context, def *job.Definition) int {
	latest, err := r.executions.LatestExecutionForJob(ctx, def.ID)
	if err != nil {
		if !errors.Is(err, scheduler.ErrExecutionNotFound) {
			r.logger.Warn("latest execution lookup error",
				slog.String("job_id", def.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		return 0
	}
	if latest.Status == execution.StatusFailed {
		return latest.RetryCount
	}
	return 0
}

// advanceNextRun computes the definition's next eligibility time from its
// cron schedule, falling back to the fixed reschedule interval when the
// expression is absent or unparseable.
func (r *Runner) advanceNextRun(ctx context.Context, def *job.Definition, now time.Time) {
	next := now.Add(r.rescheduleInterval)

	if def.Schedule != "" {
		sched, err := job.ParseSchedule(def.Schedule)
		if err != nil {
			r.logger.Error("invalid job schedule",
				slog.String("job_id", def.ID.String()),
				slog.String("schedule", def.Schedule),
				slog.String("error", err.Error()),
			)
		} else {
			next = sched.Next(now)
		}
	}

	if err := r.jobs.UpdateJobNextRun(ctx, def.ID, next); err != nil {
		r.logger.Error("update job next run error",
			slog.String("job_id", def.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
