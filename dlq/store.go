package dlq

import (
	"context"
	"time"

	"github.com/carebridge/scheduler/id"
)

// ListOpts controls pagination and filtering for DLQ list queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
	// TenantID filters by owning tenant. Empty means all tenants.
	TenantID string
	// IncludeResolved includes manually cleared entries. Default is
	// unresolved only.
	IncludeResolved bool
}

// Store defines the persistence contract for the dead letter queue.
type Store interface {
	// PushDLQ inserts a failed job entry. Insertion is idempotent per
	// (JobID, ExecutionID): a duplicate push refreshes LastFailedAt on
	// the existing entry and is otherwise silently ignored.
	PushDLQ(ctx context.Context, entry *Entry) error

	// GetDLQ retrieves a DLQ entry by ID.
	GetDLQ(ctx context.Context, entryID id.DLQID) (*Entry, error)

	// ListDLQ returns DLQ entries matching the given options, oldest
	// failure first.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// HasUnresolvedDLQ reports whether the job has an unresolved entry.
	// The runner uses this to exclude DLQ-promoted jobs from scheduling.
	HasUnresolvedDLQ(ctx context.Context, jobID id.JobID) (bool, error)

	// ResolveDLQ marks an entry as manually resolved, re-opening the
	// job's runner eligibility.
	ResolveDLQ(ctx context.Context, entryID id.DLQID) error

	// PurgeDLQ removes resolved entries with LastFailedAt before the
	// given time. Returns the number of entries removed.
	PurgeDLQ(ctx context.Context, before time.Time) (int64, error)

	// CountDLQ returns the number of unresolved entries.
	CountDLQ(ctx context.Context) (int64, error)
}
