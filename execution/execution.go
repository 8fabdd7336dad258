// Package execution defines the execution ledger: one durable row per
// attempt to run a job's handler, with a strict lifecycle state machine.
//
// Rows are append-mostly. An execution is created PENDING, transitions
// once to RUNNING when the handler is invoked, and then exactly once to a
// terminal state (COMPLETED or FAILED). No transition skips states and no
// terminal state is re-entered. Rows are never deleted; the ledger is the
// audit trail for the whole engine.
package execution

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/carebridge/scheduler"
	"github.com/carebridge/scheduler/id"
)

// Status is the lifecycle state of an execution.
type Status string

const (
	// StatusPending means the ledger row exists but the handler has not
	// been invoked yet.
	StatusPending Status = "pending"
	// StatusRunning means the handler is executing.
	StatusRunning Status = "running"
	// StatusCompleted means the handler returned successfully. Terminal.
	StatusCompleted Status = "completed"
	// StatusFailed means the handler returned an error. Terminal.
	StatusFailed Status = "failed"
)

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RunnerIdentitySystem tags executions created by the scheduled trigger.
const RunnerIdentitySystem = "system"

// RunnerIdentityManual tags executions created by the manual trigger.
const RunnerIdentityManual = "manual"

// Execution is one attempt to run a job's handler.
type Execution struct {
	scheduler.Entity

	ID       id.ExecutionID `json:"id"`
	JobID    id.JobID       `json:"job_id"`
	TenantID string         `json:"tenant_id"`
	Status   Status         `json:"status"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  int64      `json:"duration_ms"`

	InputParams  json.RawMessage `json:"input_params,omitempty"`
	OutputResult json.RawMessage `json:"output_result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`

	// RetryCount is the number of consecutive failed attempts for this
	// job so far, inherited from the previous failed execution and
	// incremented when this one fails.
	RetryCount int `json:"retry_count"`
	// MaxRetries is the budget after which the job is promoted to the DLQ.
	MaxRetries int `json:"max_retries"`
	// BackoffUntil is set on failure; the job is ineligible until it passes.
	BackoffUntil *time.Time `json:"backoff_until,omitempty"`

	// RunnerIdentity distinguishes automated runs ("system") from manual
	// triggers ("manual").
	RunnerIdentity string `json:"runner_identity"`
}

// New creates a PENDING execution for one attempt at the given job.
// retryCount carries over the consecutive-failure count from the previous
// attempt; zero for a fresh job.
func New(jobID id.JobID, tenantID string, runnerIdentity string, input json.RawMessage, retryCount, maxRetries int) *Execution {
	return &Execution{
		Entity:         scheduler.NewEntity(),
		ID:             id.NewExecutionID(),
		JobID:          jobID,
		TenantID:       tenantID,
		Status:         StatusPending,
		InputParams:    input,
		RetryCount:     retryCount,
		MaxRetries:     maxRetries,
		RunnerIdentity: runnerIdentity,
	}
}

// MarkRunning transitions PENDING → RUNNING and stamps StartedAt.
func (e *Execution) MarkRunning(now time.Time) error {
	if e.Status != StatusPending {
		return fmt.Errorf("%w: %s → %s", scheduler.ErrInvalidState, e.Status, StatusRunning)
	}
	e.Status = StatusRunning
	e.StartedAt = &now
	e.Touch()
	return nil
}

// MarkCompleted transitions RUNNING → COMPLETED, stamping CompletedAt,
// DurationMS, and the handler's output.
func (e *Execution) MarkCompleted(now time.Time, output json.RawMessage) error {
	if e.Status != StatusRunning {
		return fmt.Errorf("%w: %s → %s", scheduler.ErrInvalidState, e.Status, StatusCompleted)
	}
	e.Status = StatusCompleted
	e.CompletedAt = &now
	e.OutputResult = output
	if e.StartedAt != nil {
		e.DurationMS = now.Sub(*e.StartedAt).Milliseconds()
	}
	e.Touch()
	return nil
}

// MarkFailed transitions RUNNING → FAILED, recording the error message and
// the backoff deadline, and increments the consecutive-failure counter.
func (e *Execution) MarkFailed(now time.Time, errMsg string, backoffUntil time.Time) error {
	if e.Status != StatusRunning {
		return fmt.Errorf("%w: %s → %s", scheduler.ErrInvalidState, e.Status, StatusFailed)
	}
	e.Status = StatusFailed
	e.CompletedAt = &now
	e.ErrorMessage = errMsg
	e.BackoffUntil = &backoffUntil
	e.RetryCount++
	if e.StartedAt != nil {
		e.DurationMS = now.Sub(*e.StartedAt).Milliseconds()
	}
	e.Touch()
	return nil
}

// ExhaustedRetries reports whether the retry budget is spent. This is the
// durable, queryable predicate behind DLQ promotion.
func (e *Execution) ExhaustedRetries() bool {
	return e.RetryCount >= e.MaxRetries
}
