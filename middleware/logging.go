package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/carebridge/scheduler/execution"
)

// Logging returns middleware that logs execution start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, e *execution.Execution, next Handler) error {
		logger.Info("execution started",
			slog.String("execution_id", e.ID.String()),
			slog.String("job_id", e.JobID.String()),
			slog.String("tenant_id", e.TenantID),
			slog.String("runner", e.RunnerIdentity),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("execution failed",
				slog.String("execution_id", e.ID.String()),
				slog.String("job_id", e.JobID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("execution completed",
				slog.String("execution_id", e.ID.String()),
				slog.String("job_id", e.JobID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
