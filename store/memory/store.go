// Package memory provides a fully in-memory implementation of the
// composite store. Safe for concurrent access. Intended for unit testing
// and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/carebridge/scheduler"
	"github.com/carebridge/scheduler/aggregation"
	"github.com/carebridge/scheduler/dlq"
	"github.com/carebridge/scheduler/execution"
	"github.com/carebridge/scheduler/id"
	"github.com/carebridge/scheduler/job"
	"github.com/carebridge/scheduler/lock"
)

// Ensure Store implements every subsystem interface at compile time.
// We can't import store here (import cycle risk is not an issue, but the
// per-subsystem checks read better), so we verify each one.
var (
	_ job.Store         = (*Store)(nil)
	_ execution.Store   = (*Store)(nil)
	_ lock.Store        = (*Store)(nil)
	_ dlq.Store         = (*Store)(nil)
	_ aggregation.Store = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	jobs         map[string]*job.Definition
	executions   map[string]*execution.Execution
	locks        map[string]*lock.Lock // key: job ID
	dlqs         map[string]*dlq.Entry
	aggregations map[string]*aggregation.Aggregation
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:         make(map[string]*job.Definition),
		executions:   make(map[string]*execution.Execution),
		locks:        make(map[string]*lock.Lock),
		dlqs:         make(map[string]*dlq.Entry),
		aggregations: make(map[string]*aggregation.Aggregation),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job definition Store
// ──────────────────────────────────────────────────

// CreateJob persists a new job definition.
func (m *Store) CreateJob(_ context.Context, d *job.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := d.ID.String()
	if _, exists := m.jobs[key]; exists {
		return scheduler.ErrJobAlreadyExists
	}
	for _, existing := range m.jobs {
		if existing.TenantID == d.TenantID && existing.Name == d.Name {
			return scheduler.ErrDuplicateJobName
		}
	}
	cp := *d
	m.jobs[key] = &cp
	return nil
}

// GetJob retrieves a job definition by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, scheduler.ErrJobNotFound
	}
	cp := *d
	return &cp, nil
}

// ListJobs returns job definitions matching the given options.
func (m *Store) ListJobs(_ context.Context, opts job.ListOpts) ([]*job.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Definition, 0, len(m.jobs))
	for _, d := range m.jobs {
		if opts.TenantID != "" && d.TenantID != opts.TenantID {
			continue
		}
		if opts.Type != "" && d.Type != opts.Type {
			continue
		}
		cp := *d
		result = append(result, &cp)
	}

	// Sort by CreatedAt for deterministic output.
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// ListDueJobs returns up to limit enabled definitions due at now, ordered
// by NextRunAt ascending with nils first.
func (m *Store) ListDueJobs(_ context.Context, now time.Time, limit int) ([]*job.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([]*job.Definition, 0, len(m.jobs))
	for _, d := range m.jobs {
		if !d.Enabled {
			continue
		}
		if d.NextRunAt != nil && d.NextRunAt.After(now) {
			continue
		}
		cp := *d
		candidates = append(candidates, &cp)
	}

	sort.Slice(candidates, func(i, k int) bool {
		a, b := candidates[i].NextRunAt, candidates[k].NextRunAt
		switch {
		case a == nil && b == nil:
			return candidates[i].CreatedAt.Before(candidates[k].CreatedAt)
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// UpdateJob persists changes to an existing definition.
func (m *Store) UpdateJob(_ context.Context, d *job.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := d.ID.String()
	if _, ok := m.jobs[key]; !ok {
		return scheduler.ErrJobNotFound
	}
	cp := *d
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[key] = &cp
	return nil
}

// UpdateJobLastRun records when the runner last picked up the job.
func (m *Store) UpdateJobLastRun(_ context.Context, jobID id.JobID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.jobs[jobID.String()]
	if !ok {
		return scheduler.ErrJobNotFound
	}
	d.LastRunAt = &at
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateJobNextRun advances the job's next eligibility time.
func (m *Store) UpdateJobNextRun(_ context.Context, jobID id.JobID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.jobs[jobID.String()]
	if !ok {
		return scheduler.ErrJobNotFound
	}
	d.NextRunAt = &at
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// Execution ledger Store
// ──────────────────────────────────────────────────

// CreateExecution persists a new PENDING execution.
func (m *Store) CreateExecution(_ context.Context, e *execution.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := e.ID.String()
	if _, exists := m.executions[key]; exists {
		return scheduler.ErrExecutionConflict
	}
	cp := *e
	m.executions[key] = &cp
	return nil
}

// GetExecution retrieves an execution by ID.
func (m *Store) GetExecution(_ context.Context, executionID id.ExecutionID) (*execution.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.executions[executionID.String()]
	if !ok {
		return nil, scheduler.ErrExecutionNotFound
	}
	cp := *e
	return &cp, nil
}

// UpdateExecution persists state changes for an existing execution.
func (m *Store) UpdateExecution(_ context.Context, e *execution.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := e.ID.String()
	if _, ok := m.executions[key]; !ok {
		return scheduler.ErrExecutionNotFound
	}
	cp := *e
	cp.UpdatedAt = time.Now().UTC()
	m.executions[key] = &cp
	return nil
}

// ListExecutions returns executions matching the given options, newest first.
func (m *Store) ListExecutions(_ context.Context, opts execution.ListOpts) ([]*execution.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*execution.Execution, 0, len(m.executions))
	for _, e := range m.executions {
		if !opts.JobID.IsNil() && e.JobID != opts.JobID {
			continue
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		if result[i].CreatedAt.Equal(result[k].CreatedAt) {
			// TypeIDs are K-sortable, so the ID breaks creation ties.
			return result[i].ID.String() > result[k].ID.String()
		}
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// LatestExecutionForJob returns the most recently created execution for
// the given job.
func (m *Store) LatestExecutionForJob(ctx context.Context, jobID id.JobID) (*execution.Execution, error) {
	list, err := m.ListExecutions(ctx, execution.ListOpts{JobID: jobID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, scheduler.ErrExecutionNotFound
	}
	return list[0], nil
}

// HasBlockingExecution reports whether the job has a fresh pending or
// running execution, or a failed one whose backoff has not yet elapsed.
// Non-terminal rows older than staleAfter are abandoned by a crashed
// holder and do not block.
func (m *Store) HasBlockingExecution(_ context.Context, jobID id.JobID, now time.Time, staleAfter time.Duration) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.executions {
		if e.JobID != jobID {
			continue
		}
		switch e.Status {
		case execution.StatusPending, execution.StatusRunning:
			ref := e.CreatedAt
			if e.StartedAt != nil {
				ref = *e.StartedAt
			}
			if staleAfter <= 0 || ref.After(now.Add(-staleAfter)) {
				return true, nil
			}
		case execution.StatusFailed:
			if e.BackoffUntil != nil && e.BackoffUntil.After(now) {
				return true, nil
			}
		}
	}
	return false, nil
}

// CountExecutions returns the number of executions matching the options.
func (m *Store) CountExecutions(_ context.Context, opts execution.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, e := range m.executions {
		if !opts.JobID.IsNil() && e.JobID != opts.JobID {
			continue
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		count++
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Lock Store
// ──────────────────────────────────────────────────

// AcquireJobLock atomically grants the job lock unless a non-expired
// holder exists. An expired lock row is treated as absent.
func (m *Store) AcquireJobLock(_ context.Context, jobID id.JobID, executionID id.ExecutionID, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	key := jobID.String()

	if l, ok := m.locks[key]; ok && !l.Expired(now) {
		return false, nil
	}

	m.locks[key] = &lock.Lock{
		JobID:             jobID,
		HolderExecutionID: executionID,
		AcquiredAt:        now,
		ExpiresAt:         now.Add(ttl),
	}
	return true, nil
}

// ReleaseJobLock deletes the lock row. Releasing an absent lock is a no-op.
func (m *Store) ReleaseJobLock(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.locks, jobID.String())
	return nil
}

// GetJobLock retrieves the current lock row, expired or not.
func (m *Store) GetJobLock(_ context.Context, jobID id.JobID) (*lock.Lock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.locks[jobID.String()]
	if !ok {
		return nil, scheduler.ErrLockNotFound
	}
	cp := *l
	return &cp, nil
}

// ──────────────────────────────────────────────────
// DLQ Store
// ──────────────────────────────────────────────────

// PushDLQ inserts a dead letter entry, idempotently per (job, execution).
func (m *Store) PushDLQ(_ context.Context, entry *dlq.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.dlqs {
		if existing.JobID == entry.JobID && existing.ExecutionID == entry.ExecutionID {
			existing.LastFailedAt = entry.LastFailedAt
			return nil
		}
	}

	cp := *entry
	m.dlqs[entry.ID.String()] = &cp
	return nil
}

// GetDLQ retrieves a DLQ entry by ID.
func (m *Store) GetDLQ(_ context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return nil, scheduler.ErrDLQNotFound
	}
	cp := *e
	return &cp, nil
}

// ListDLQ returns DLQ entries matching the given options, oldest failure first.
func (m *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(m.dlqs))
	for _, e := range m.dlqs {
		if opts.TenantID != "" && e.TenantID != opts.TenantID {
			continue
		}
		if !opts.IncludeResolved && e.Resolved() {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].FirstFailedAt.Before(result[k].FirstFailedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// HasUnresolvedDLQ reports whether the job has an unresolved entry.
func (m *Store) HasUnresolvedDLQ(_ context.Context, jobID id.JobID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.dlqs {
		if e.JobID == jobID && !e.Resolved() {
			return true, nil
		}
	}
	return false, nil
}

// ResolveDLQ marks an entry as manually resolved.
func (m *Store) ResolveDLQ(_ context.Context, entryID id.DLQID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return scheduler.ErrDLQNotFound
	}
	now := time.Now().UTC()
	e.ResolvedAt = &now
	return nil
}

// PurgeDLQ removes resolved entries with LastFailedAt before the given time.
func (m *Store) PurgeDLQ(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key, e := range m.dlqs {
		if e.Resolved() && e.LastFailedAt.Before(before) {
			delete(m.dlqs, key)
			count++
		}
	}
	return count, nil
}

// CountDLQ returns the number of unresolved entries.
func (m *Store) CountDLQ(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, e := range m.dlqs {
		if !e.Resolved() {
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Aggregation Store
// ──────────────────────────────────────────────────

// SaveAggregation persists a computed artifact.
func (m *Store) SaveAggregation(_ context.Context, a *aggregation.Aggregation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *a
	m.aggregations[a.ID.String()] = &cp
	return nil
}

// ListAggregations returns artifacts matching the options, newest period first.
func (m *Store) ListAggregations(_ context.Context, opts aggregation.ListOpts) ([]*aggregation.Aggregation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*aggregation.Aggregation, 0, len(m.aggregations))
	for _, a := range m.aggregations {
		if opts.TenantID != "" && a.TenantID != opts.TenantID {
			continue
		}
		if opts.Kind != "" && a.Kind != opts.Kind {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].PeriodEnd.After(result[k].PeriodEnd)
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// paginate applies offset and limit to a sorted slice.
func paginate[T any](s []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(s) {
			return nil
		}
		s = s[offset:]
	}
	if limit > 0 && len(s) > limit {
		s = s[:limit]
	}
	return s
}
