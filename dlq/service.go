package dlq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge/scheduler/execution"
	"github.com/carebridge/scheduler/id"
)

// Ledger is the slice of the execution store Promote reads to bound a
// job's failure streak.
type Ledger interface {
	ListExecutions(ctx context.Context, opts execution.ListOpts) ([]*execution.Execution, error)
}

// Service provides high-level DLQ operations over a Store.
type Service struct {
	store  Store
	ledger Ledger
	logger *slog.Logger
}

// NewService creates a DLQ service. ledger may be nil, in which case
// promoted entries bound the failure history by the final execution alone.
func NewService(store Store, ledger Ledger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, ledger: ledger, logger: logger}
}

// Promote builds a DLQ Entry from an execution that exhausted its retry
// budget and persists it. FirstFailedAt and LastFailedAt bound the
// consecutive-failure streak that led here, read back from the ledger.
// Promotion is idempotent per (job, execution): promoting the same pair
// twice yields one entry, with LastFailedAt refreshed. jobType is
// recorded for triage tooling.
func (s *Service) Promote(ctx context.Context, e *execution.Execution, jobType string) error {
	now := time.Now().UTC()

	firstFailed := now
	if e.CompletedAt != nil {
		firstFailed = *e.CompletedAt
	}
	if start, ok := s.streakStart(ctx, e.JobID); ok {
		firstFailed = start
	}

	entry := &Entry{
		ID:            id.NewDLQID(),
		JobID:         e.JobID,
		ExecutionID:   e.ID,
		TenantID:      e.TenantID,
		JobType:       jobType,
		Reason:        e.ErrorMessage,
		InputParams:   e.InputParams,
		RetryAttempts: e.RetryCount,
		FirstFailedAt: firstFailed,
		LastFailedAt:  now,
		CreatedAt:     now,
	}

	if err := s.store.PushDLQ(ctx, entry); err != nil {
		return fmt.Errorf("promote job %s to dlq: %w", e.JobID, err)
	}

	s.logger.Warn("job promoted to dead letter queue",
		slog.String("job_id", e.JobID.String()),
		slog.String("execution_id", e.ID.String()),
		slog.String("tenant_id", e.TenantID),
		slog.Int("retry_attempts", e.RetryCount),
		slog.String("reason", e.ErrorMessage),
	)

	return nil
}

// streakStart walks the job's ledger newest-first and returns the failure
// time of the oldest execution in the trailing run of FAILED rows. Reports
// false when no ledger is wired or the walk finds nothing usable.
func (s *Service) streakStart(ctx context.Context, jobID id.JobID) (time.Time, bool) {
	if s.ledger == nil {
		return time.Time{}, false
	}

	execs, err := s.ledger.ListExecutions(ctx, execution.ListOpts{JobID: jobID})
	if err != nil {
		s.logger.Warn("dlq streak lookup error",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
		return time.Time{}, false
	}

	var start time.Time
	var found bool
	for _, e := range execs {
		if e.Status != execution.StatusFailed {
			break
		}
		if e.CompletedAt != nil {
			start = *e.CompletedAt
			found = true
		}
	}
	return start, found
}

// Resolve marks an entry as manually cleared, restoring the job's
// scheduling eligibility.
func (s *Service) Resolve(ctx context.Context, entryID id.DLQID) error {
	if err := s.store.ResolveDLQ(ctx, entryID); err != nil {
		return fmt.Errorf("resolve dlq entry %s: %w", entryID, err)
	}

	s.logger.Info("dlq entry resolved", slog.String("entry_id", entryID.String()))
	return nil
}

// Blocked reports whether the job is excluded from scheduling by an
// unresolved DLQ entry.
func (s *Service) Blocked(ctx context.Context, jobID id.JobID) (bool, error) {
	blocked, err := s.store.HasUnresolvedDLQ(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("check dlq for job %s: %w", jobID, err)
	}
	return blocked, nil
}

// DLQStore returns the underlying store for direct access to List, Get,
// Purge, and Count operations.
func (s *Service) DLQStore() Store {
	return s.store
}
