package lock

import (
	"context"
	"time"

	"github.com/carebridge/scheduler/id"
)

// Store defines the persistence contract for job locks.
type Store interface {
	// AcquireJobLock atomically grants the lock for jobID to the given
	// execution with the given TTL. Returns false without side effects
	// when another holder's non-expired lock exists; an expired lock is
	// treated as absent and overwritten.
	AcquireJobLock(ctx context.Context, jobID id.JobID, executionID id.ExecutionID, ttl time.Duration) (bool, error)

	// ReleaseJobLock deletes the lock row for jobID. Releasing an
	// already-released or expired lock is a no-op, never an error.
	ReleaseJobLock(ctx context.Context, jobID id.JobID) error

	// GetJobLock retrieves the current lock row for jobID, expired or not.
	// Returns scheduler.ErrLockNotFound when no row exists.
	GetJobLock(ctx context.Context, jobID id.JobID) (*Lock, error)
}
