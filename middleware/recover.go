package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/carebridge/scheduler/execution"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace, so a bug in
// one handler fails its own execution instead of aborting the runner tick.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, e *execution.Execution, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("job handler panicked",
					slog.String("execution_id", e.ID.String()),
					slog.String("job_id", e.JobID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in execution %s: %v", e.ID, r)
			}
		}()
		return next(ctx)
	}
}
