package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge/scheduler"
	"github.com/carebridge/scheduler/id"
)

// Manager arbitrates job locks over a Store. It adds logging and the
// held-or-free query used by tests and admin tooling; the atomicity of
// Acquire lives in the store implementation.
type Manager struct {
	store  Store
	logger *slog.Logger
}

// NewManager creates a lock Manager.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// Acquire attempts to take the lock for jobID on behalf of executionID.
// Contention is an expected outcome, not an error: the first return value
// is false when another holder is active.
func (m *Manager) Acquire(ctx context.Context, jobID id.JobID, executionID id.ExecutionID, ttl time.Duration) (bool, error) {
	acquired, err := m.store.AcquireJobLock(ctx, jobID, executionID, ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock for job %s: %w", jobID, err)
	}

	if acquired {
		m.logger.Debug("job lock acquired",
			slog.String("job_id", jobID.String()),
			slog.String("execution_id", executionID.String()),
			slog.Duration("ttl", ttl),
		)
	}

	return acquired, nil
}

// Release frees the lock for jobID. Idempotent: releasing a lock that was
// never held, already released, or expired succeeds silently.
func (m *Manager) Release(ctx context.Context, jobID id.JobID) error {
	if err := m.store.ReleaseJobLock(ctx, jobID); err != nil {
		return fmt.Errorf("release lock for job %s: %w", jobID, err)
	}

	m.logger.Debug("job lock released", slog.String("job_id", jobID.String()))
	return nil
}

// Held reports whether a live (non-expired) lock exists for jobID.
func (m *Manager) Held(ctx context.Context, jobID id.JobID, now time.Time) (bool, error) {
	l, err := m.store.GetJobLock(ctx, jobID)
	if err != nil {
		if errors.Is(err, scheduler.ErrLockNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get lock for job %s: %w", jobID, err)
	}
	return !l.Expired(now), nil
}
