package execution

import (
	"context"
	"time"

	"github.com/carebridge/scheduler/id"
)

// ListOpts controls pagination and filtering for execution list queries.
type ListOpts struct {
	// Limit is the maximum number of executions to return. Zero means no limit.
	Limit int
	// Offset is the number of executions to skip.
	Offset int
	// JobID filters by job definition. Nil means all jobs.
	JobID id.JobID
	// Status filters by execution status. Empty means all statuses.
	Status Status
}

// CountOpts controls filtering for execution count queries.
type CountOpts struct {
	// JobID filters by job definition. Nil means all jobs.
	JobID id.JobID
	// Status filters by execution status. Empty means all statuses.
	Status Status
}

// Store defines the persistence contract for the execution ledger.
type Store interface {
	// CreateExecution persists a new PENDING execution.
	CreateExecution(ctx context.Context, e *Execution) error

	// GetExecution retrieves an execution by ID.
	GetExecution(ctx context.Context, executionID id.ExecutionID) (*Execution, error)

	// UpdateExecution persists state changes for an existing execution.
	UpdateExecution(ctx context.Context, e *Execution) error

	// ListExecutions returns executions matching the given options,
	// newest first.
	ListExecutions(ctx context.Context, opts ListOpts) ([]*Execution, error)

	// LatestExecutionForJob returns the most recently created execution
	// for the given job, or scheduler.ErrExecutionNotFound if none exists.
	LatestExecutionForJob(ctx context.Context, jobID id.JobID) (*Execution, error)

	// HasBlockingExecution reports whether the job has an execution that
	// makes it ineligible for scheduling: one in PENDING or RUNNING no
	// older than staleAfter, or a FAILED one whose BackoffUntil has not
	// yet elapsed. Non-terminal rows past staleAfter are abandoned work
	// from a crashed holder; the job lock has long expired, and treating
	// them as blocking would take the job out of rotation forever. A
	// staleAfter of zero or less disables the staleness cutoff.
	HasBlockingExecution(ctx context.Context, jobID id.JobID, now time.Time, staleAfter time.Duration) (bool, error)

	// CountExecutions returns the number of executions matching the
	// given options.
	CountExecutions(ctx context.Context, opts CountOpts) (int64, error)
}
