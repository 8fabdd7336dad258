package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carebridge/scheduler"
	"github.com/carebridge/scheduler/id"
	"github.com/carebridge/scheduler/job"
)

const jobColumns = `
	id, tenant_id, name, type, config, schedule, max_retries, enabled,
	next_run_at, last_run_at, created_at, updated_at`

// CreateJob persists a new job definition.
func (s *Store) CreateJob(ctx context.Context, d *job.Definition) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduler_job_definitions (
			id, tenant_id, name, type, config, schedule, max_retries, enabled,
			next_run_at, last_run_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12
		)`,
		d.ID.String(), d.TenantID, d.Name, string(d.Type), d.Config,
		d.Schedule, d.MaxRetries, d.Enabled,
		d.NextRunAt, d.LastRunAt, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			// The tenant+name unique index and the primary key both raise
			// 23505. Tell them apart by constraint name.
			var pgErr *pgconn.PgError
			if asPgError(err, &pgErr) && pgErr.ConstraintName == "idx_scheduler_job_definitions_tenant_name" {
				return scheduler.ErrDuplicateJobName
			}
			return scheduler.ErrJobAlreadyExists
		}
		return fmt.Errorf("scheduler/postgres: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job definition by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Definition, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT`+jobColumns+`
		FROM scheduler_job_definitions
		WHERE id = $1`,
		jobID.String(),
	)

	d, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, scheduler.ErrJobNotFound
		}
		return nil, fmt.Errorf("scheduler/postgres: get job: %w", err)
	}
	return d, nil
}

// ListJobs returns job definitions matching the given options.
func (s *Store) ListJobs(ctx context.Context, opts job.ListOpts) ([]*job.Definition, error) {
	query := `
		SELECT` + jobColumns + `
		FROM scheduler_job_definitions
		WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if opts.TenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, opts.TenantID)
		argIdx++
	}
	if opts.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, string(opts.Type))
		argIdx++
	}

	query += " ORDER BY created_at ASC"

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
		return nil, fmt.Errorf("scheduler/postgres: list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListDueJobs returns up to limit enabled definitions whose next run time
// is unset or has passed, ordered oldest first with never-run jobs ahead.
func (s *Store) ListDueJobs(ctx context.Context, now time.Time, limit int) ([]*job.Definition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+jobColumns+`
		FROM scheduler_job_definitions
		WHERE enabled = TRUE
		  AND (next_run_at IS NULL OR next_run_at <= $1)
		ORDER BY next_run_at ASC NULLS FIRST, created_at ASC
		LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("scheduler/postgres: list due jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// UpdateJob persists changes to an existing definition.
func (s *Store) UpdateJob(ctx context.Context, d *job.Definition) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scheduler_job_definitions SET
			tenant_id = $2, name = $3, type = $4, config = $5,
			schedule = $6, max_retries = $7, enabled = $8,
			next_run_at = $9, last_run_at = $10,
			updated_at = NOW()
		WHERE id = $1`,
		d.ID.String(), d.TenantID, d.Name, string(d.Type), d.Config,
		d.Schedule, d.MaxRetries, d.Enabled,
		d.NextRunAt, d.LastRunAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return scheduler.ErrDuplicateJobName
		}
		return fmt.Errorf("scheduler/postgres: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scheduler.ErrJobNotFound
	}
	return nil
}

// UpdateJobLastRun records when the runner last picked up the job.
func (s *Store) UpdateJobLastRun(ctx context.Context, jobID id.JobID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scheduler_job_definitions SET last_run_at = $2, updated_at = NOW() WHERE id = $1`,
		jobID.String(), at,
	)
	if err != nil {
		return fmt.Errorf("scheduler/postgres: update job last run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scheduler.ErrJobNotFound
	}
	return nil
}

// UpdateJobNextRun advances the job's next eligibility time.
func (s *Store) UpdateJobNextRun(ctx context.Context, jobID id.JobID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scheduler_job_definitions SET next_run_at = $2, updated_at = NOW() WHERE id = $1`,
		jobID.String(), at,
	)
	if err != nil {
		return fmt.Errorf("scheduler/postgres: update job next run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scheduler.ErrJobNotFound
	}
	return nil
}

// scanJob scans a single job definition row.
func scanJob(row pgx.Row) (*job.Definition, error) {
	var (
		d       job.Definition
		idStr   string
		typeStr string
	)
	err := row.Scan(
		&idStr, &d.TenantID, &d.Name, &typeStr, &d.Config,
		&d.Schedule, &d.MaxRetries, &d.Enabled,
		&d.NextRunAt, &d.LastRunAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = job.Type(typeStr)

	parsedID, parseErr := id.ParseJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("scheduler/postgres: parse job id %q: %w", idStr, parseErr)
	}
	d.ID = parsedID

	return &d, nil
}

// collectJobs collects all job definitions from query rows.
func collectJobs(rows pgx.Rows) ([]*job.Definition, error) {
	var defs []*job.Definition
	for rows.Next() {
		d, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scheduler/postgres: scan job row: %w", err)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduler/postgres: iterate job rows: %w", err)
	}
	return defs, nil
}
