package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carebridge/scheduler"
	"github.com/carebridge/scheduler/dlq"
	"github.com/carebridge/scheduler/id"
)

const dlqColumns = `
	id, job_id, execution_id, tenant_id, job_type, reason, input_params,
	retry_attempts, first_failed_at, last_failed_at, resolved_at, created_at`

// PushDLQ inserts a dead letter entry. The (job_id, execution_id) unique
// index makes promotion idempotent: re-promoting the same failed
// execution only refreshes last_failed_at.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduler_dead_letters (
			id, job_id, execution_id, tenant_id, job_type, reason, input_params,
			retry_attempts, first_failed_at, last_failed_at, resolved_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12
		)
		ON CONFLICT (job_id, execution_id) DO UPDATE SET
			last_failed_at = EXCLUDED.last_failed_at`,
		entry.ID.String(), entry.JobID.String(), entry.ExecutionID.String(),
		entry.TenantID, entry.JobType, entry.Reason, entry.InputParams,
		entry.RetryAttempts, entry.FirstFailedAt, entry.LastFailedAt,
		entry.ResolvedAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("scheduler/postgres: push dlq: %w", err)
	}
	return nil
}

// GetDLQ retrieves a dead letter entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT`+dlqColumns+`
		FROM scheduler_dead_letters
		WHERE id = $1`,
		entryID.String(),
	)

	e, err := scanDLQ(row)
	if err != nil {
		if isNoRows(err) {
			return nil, scheduler.ErrDLQNotFound
		}
		return nil, fmt.Errorf("scheduler/postgres: get dlq: %w", err)
	}
	return e, nil
}

// ListDLQ returns dead letter entries matching the given options, oldest
// failure first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	query := `
		SELECT` + dlqColumns + `
		FROM scheduler_dead_letters
		WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if opts.TenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, opts.TenantID)
		argIdx++
	}
	if !opts.IncludeResolved {
		query += " AND resolved_at IS NULL"
	}

	query += " ORDER BY first_failed_at ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scheduler/postgres: list dlq: %w", err)
	}
	defer rows.Close()

	return collectDLQ(rows)
}

// HasUnresolvedDLQ reports whether the job has an unresolved entry.
func (s *Store) HasUnresolvedDLQ(ctx context.Context, jobID id.JobID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM scheduler_dead_letters
			WHERE job_id = $1 AND resolved_at IS NULL
		)`,
		jobID.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("scheduler/postgres: has unresolved dlq: %w", err)
	}
	return exists, nil
}

// ResolveDLQ marks an entry as manually resolved.
func (s *Store) ResolveDLQ(ctx context.Context, entryID id.DLQID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scheduler_dead_letters SET resolved_at = NOW() WHERE id = $1`,
		entryID.String(),
	)
	if err != nil {
		return fmt.Errorf("scheduler/postgres: resolve dlq: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scheduler.ErrDLQNotFound
	}
	return nil
}

// PurgeDLQ removes resolved entries whose last failure predates the
// given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM scheduler_dead_letters
		WHERE resolved_at IS NOT NULL AND last_failed_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("scheduler/postgres: purge dlq: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountDLQ returns the number of unresolved entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM scheduler_dead_letters WHERE resolved_at IS NULL`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("scheduler/postgres: count dlq: %w", err)
	}
	return count, nil
}

// scanDLQ scans a single dead letter row.
func scanDLQ(row pgx.Row) (*dlq.Entry, error) {
	var (
		e       dlq.Entry
		idStr   string
		jobStr  string
		execStr string
	)
	err := row.Scan(
		&idStr, &jobStr, &execStr, &e.TenantID, &e.JobType, &e.Reason,
		&e.InputParams, &e.RetryAttempts, &e.FirstFailedAt, &e.LastFailedAt,
		&e.ResolvedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, parseErr := id.ParseDLQID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("scheduler/postgres: parse dlq id %q: %w", idStr, parseErr)
	}
	e.ID = parsedID

	parsedJobID, jobErr := id.ParseJobID(jobStr)
	if jobErr != nil {
		return nil, fmt.Errorf("scheduler/postgres: parse job id %q: %w", jobStr, jobErr)
	}
	e.JobID = parsedJobID

	parsedExecID, execErr := id.ParseExecutionID(execStr)
	if execErr != nil {
		return nil, fmt.Errorf("scheduler/postgres: parse execution id %q: %w", execStr, execErr)
	}
	e.ExecutionID = parsedExecID

	return &e, nil
}

// collectDLQ collects all dead letter entries from query rows.
func collectDLQ(rows pgx.Rows) ([]*dlq.Entry, error) {
	var entries []*dlq.Entry
	for rows.Next() {
		e, err := scanDLQ(rows)
		if err != nil {
			return nil, fmt.Errorf("scheduler/postgres: scan dlq row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduler/postgres: iterate dlq rows: %w", err)
	}
	return entries, nil
}
