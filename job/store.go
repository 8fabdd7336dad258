package job

import (
	"context"
	"time"

	"github.com/carebridge/scheduler/id"
)

// ListOpts controls pagination and filtering for job definition queries.
type ListOpts struct {
	// Limit is the maximum number of definitions to return. Zero means no limit.
	Limit int
	// Offset is the number of definitions to skip.
	Offset int
	// TenantID filters by owning tenant. Empty means all tenants.
	TenantID string
	// Type filters by job type. Empty means all types.
	Type Type
}

// Store defines the persistence contract for job definitions.
type Store interface {
	// CreateJob persists a new job definition. Returns
	// scheduler.ErrJobAlreadyExists on a duplicate ID and
	// scheduler.ErrDuplicateJobName on a duplicate (tenant, name) pair.
	CreateJob(ctx context.Context, d *Definition) error

	// GetJob retrieves a job definition by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Definition, error)

	// ListJobs returns job definitions matching the given options,
	// ordered by creation time.
	ListJobs(ctx context.Context, opts ListOpts) ([]*Definition, error)

	// ListDueJobs returns up to limit enabled definitions whose NextRunAt
	// is nil or not after now, ordered by NextRunAt ascending with nils
	// first. Lock, execution, and DLQ eligibility are the caller's
	// concern — each of those subsystems owns its own predicate.
	ListDueJobs(ctx context.Context, now time.Time, limit int) ([]*Definition, error)

	// UpdateJob persists changes to an existing definition.
	UpdateJob(ctx context.Context, d *Definition) error

	// UpdateJobLastRun records when the runner last picked up the job.
	UpdateJobLastRun(ctx context.Context, jobID id.JobID, at time.Time) error

	// UpdateJobNextRun advances the job's next eligibility time.
	UpdateJobNextRun(ctx context.Context, jobID id.JobID, at time.Time) error
}
