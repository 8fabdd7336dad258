// Package lock provides the per-job mutual exclusion primitive: a
// time-boxed exclusive lock row granted to one execution at a time.
//
// The lock table is the sole concurrency control in the engine. Acquire is
// an atomic conditional write: it succeeds only when no non-expired lock
// row exists for the job. A lock past its TTL is treated as absent, which
// is the only recovery path for a crashed holder — there is no heartbeat
// renewal, so the TTL must exceed the worst-case handler runtime.
package lock

import (
	"time"

	"github.com/carebridge/scheduler/id"
)

// Lock is a time-boxed exclusivity token for one job definition.
// At most one non-expired Lock exists per job ID at any instant.
type Lock struct {
	JobID id.JobID `json:"job_id"`

	// HolderExecutionID identifies the ledger attempt that holds the lock.
	HolderExecutionID id.ExecutionID `json:"holder_execution_id"`

	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lock's TTL has elapsed at the given instant.
func (l *Lock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
