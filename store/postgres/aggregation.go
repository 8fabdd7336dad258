package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/carebridge/scheduler/aggregation"
	"github.com/carebridge/scheduler/id"
)

// SaveAggregation persists a computed aggregation artifact.
func (s *Store) SaveAggregation(ctx context.Context, a *aggregation.Aggregation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduler_aggregations (
			id, tenant_id, kind, period_start, period_end, metrics,
			execution_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)`,
		a.ID.String(), a.TenantID, string(a.Kind), a.PeriodStart, a.PeriodEnd,
		a.Metrics, a.ExecutionID.String(), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("scheduler/postgres: save aggregation: %w", err)
	}
	return nil
}

// ListAggregations returns artifacts matching the options, newest period first.
func (s *Store) ListAggregations(ctx context.Context, opts aggregation.ListOpts) ([]*aggregation.Aggregation, error) {
	query := `
		SELECT id, tenant_id, kind, period_start, period_end, metrics,
			execution_id, created_at
		FROM scheduler_aggregations
		WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if opts.TenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, opts.TenantID)
		argIdx++
	}
	if opts.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, string(opts.Kind))
		argIdx++
	}

	query += " ORDER BY period_end DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scheduler/postgres: list aggregations: %w", err)
	}
	defer rows.Close()

	var result []*aggregation.Aggregation
	for rows.Next() {
		a, scanErr := scanAggregation(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scheduler/postgres: scan aggregation row: %w", scanErr)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheduler/postgres: iterate aggregation rows: %w", err)
	}
	return result, nil
}

// scanAggregation scans a single aggregation row.
func scanAggregation(row pgx.Row) (*aggregation.Aggregation, error) {
	var (
		a       aggregation.Aggregation
		idStr   string
		kindStr string
		execStr string
	)
	err := row.Scan(
		&idStr, &a.TenantID, &kindStr, &a.PeriodStart, &a.PeriodEnd,
		&a.Metrics, &execStr, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Kind = aggregation.Kind(kindStr)

	parsedID, parseErr := id.ParseAggregationID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("scheduler/postgres: parse aggregation id %q: %w", idStr, parseErr)
	}
	a.ID = parsedID

	parsedExecID, execErr := id.ParseExecutionID(execStr)
	if execErr != nil {
		return nil, fmt.Errorf("scheduler/postgres: parse execution id %q: %w", execStr, execErr)
	}
	a.ExecutionID = parsedExecID

	return &a, nil
}
