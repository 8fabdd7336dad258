package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carebridge/scheduler"
	"github.com/carebridge/scheduler/execution"
	"github.com/carebridge/scheduler/id"
)

const executionColumns = `
	id, job_id, tenant_id, status, started_at, completed_at, duration_ms,
	input_params, output_result, error_message,
	retry_count, max_retries, backoff_until, runner_identity,
	created_at, updated_at`

// CreateExecution persists a new PENDING execution.
func (s *Store) CreateExecution(ctx context.Context, e *execution.Execution) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduler_executions (
			id, job_id, tenant_id, status, started_at, completed_at, duration_ms,
			input_params, output_result, error_message,
			retry_count, max_retries, backoff_until, runner_identity,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10,
			$11, $12, $13, $14,
			$15, $16
		)`,
		e.ID.String(), e.JobID.String(), e.TenantID, string(e.Status),
		e.StartedAt, e.CompletedAt, e.DurationMS,
		e.InputParams, e.OutputResult, e.ErrorMessage,
		e.RetryCount, e.MaxRetries, e.BackoffUntil, e.RunnerIdentity,
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return scheduler.ErrExecutionConflict
		}
		return fmt.Errorf("scheduler/postgres: create execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (s *Store) GetExecution(ctx context.Context, executionID id.ExecutionID) (*execution.Execution, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT`+executionColumns+`
		FROM scheduler_executions
		WHERE id = $1`,
		executionID.String(),
	)

	e, err := scanExecution(row)
	if err != nil {
		if isNoRows(err) {
			return nil, scheduler.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("scheduler/postgres: get execution: %w", err)
	}
	return e, nil
}

// UpdateExecution persists state changes for an existing execution.
func (s *Store) UpdateExecution(ctx context.Context, e *execution.Execution) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scheduler_executions SET
			status = $2, started_at = $3, completed_at = $4, duration_ms = $5,
			output_result = $6, error_message = $7,
			retry_count = $8, backoff_until = $9,
			updated_at = NOW()
		WHERE id = $1`,
		e.ID.String(), string(e.Status), e.StartedAt, e.CompletedAt, e.DurationMS,
		e.OutputResult, e.ErrorMessage,
		e.RetryCount, e.BackoffUntil,
	)
	if err != nil {
		return fmt.Errorf("scheduler/postgres: update execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scheduler.ErrExecutionNotFound
	}
	return nil
}

// ListExecutions returns executions matching the given options, newest first.
func (s *Store) ListExecutions(ctx context.Context, opts execution.ListOpts) ([]*execution.Execution, error) {
	query := `
		SELECT` + executionColumns + `
		FROM scheduler_executions
		WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if !opts.JobID.IsNil() {
		query += fmt.Sprintf(" AND job_id = $%d", argIdx)
		args = append(args, opts.JobID.String())
		argIdx++
	}
	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(opts.Status))
		argIdx++
	}

	// TypeIDs are K-sortable, so id DESC breaks created_at ties in
	// creation order.
	query += " ORDER BY created_at DESC, id DESC"

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
		return nil, fmt.Errorf("scheduler/postgres: list executions: %w", err)
	}
	defer rows.Close()

	return collectExecutions(rows)
}

// LatestExecutionForJob returns the most recently created execution for
// the given job.
func (s *Store) LatestExecutionForJob(ctx context.Context, jobID id.JobID) (*execution.Execution, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT`+executionColumns+`
		FROM scheduler_executions
		WHERE job_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		jobID.String(),
	)

	e, err := scanExecution(row)
	if err != nil {
		if isNoRows(err) {
			return nil, scheduler.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("scheduler/postgres: latest execution for job: %w", err)
	}
	return e, nil
}

// HasBlockingExecution reports whether the job has a fresh pending or
// running execution, or a failed one whose backoff has not yet elapsed.
// Non-terminal rows older than staleAfter are abandoned by a crashed
// holder and do not block.
func (s *Store) HasBlockingExecution(ctx context.Context, jobID id.JobID, now time.Time, staleAfter time.Duration) (bool, error) {
	staleCutoff := now.Add(-staleAfter)
	if staleAfter <= 0 {
		// No cutoff: any non-terminal row blocks.
		staleCutoff = time.Time{}
	}

	var blocked bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM scheduler_executions
			WHERE job_id = $1
			  AND (
				(status IN ('pending', 'running') AND COALESCE(started_at, created_at) > $3)
				OR (status = 'failed' AND backoff_until IS NOT NULL AND backoff_until > $2)
			  )
		)`,
		jobID.String(), now, staleCutoff,
	).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("scheduler/postgres: has blocking execution: %w", err)
	}
	return blocked, nil
}

// CountExecutions returns the number of executions matching the options.
func (s *Store) CountExecutions(ctx context.Context, opts execution.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM scheduler_executions WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if !opts.JobID.IsNil() {
		query += fmt.Sprintf(" AND job_id = $%d", argIdx)
		args = append(args, opts.JobID.String())
		argIdx++
	}
	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(opts.Status))
	}

	var count int64
	err := s.pool.QueryRow(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("scheduler/postgres: count executions: %w", err)
	}
	return count, nil
}

// scanExecution scans a single execution row.
func scanExecution(row pgx.Row) (*execution.Execution, error) {
	var (
		e         execution.Execution
		idStr     string
		jobIDStr  string
		statusStr string
	)
	err := row.Scan(
		&idStr, &jobIDStr, &e.TenantID, &statusStr,
		&e.StartedAt, &e.CompletedAt, &e.DurationMS,
		&e.InputParams, &e.OutputResult, &e.ErrorMessage,
		&e.RetryCount, &e.MaxRetries, &e.BackoffUntil, &e.RunnerIdentity,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Status = execution.Status(statusStr)

	parsedID, parseErr := id.ParseExecutionID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("scheduler/postgres: parse execution id %q: %w", idStr, parseErr)
	}
	e.ID = parsedID

	parsedJobID, jobErr := id.ParseJobID(jobIDStr)
	if jobErr != nil {
		return nil, fmt.Errorf("scheduler/postgres: parse job id %q: %w", jobIDStr, jobErr)
	}
	e.JobID = parsedJobID

	return &e, nil
}

// collectExecutions collects all executions from query rows.
func collectExecutions(rows pgx.Rows) ([]*execution.Execution, error) {
	var execs []*execution.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scheduler/postgres: scan execution row: %w", err)
		}
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduler/postgres: iterate execution rows: %w", err)
	}
	return execs, nil
}
