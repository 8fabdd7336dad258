package middleware

import (
	"context"
	"time"

	"github.com/carebridge/scheduler/execution"
)

// Timeout returns middleware that bounds handler runtime with a context
// deadline. The engine's own recovery from a stuck handler is lock TTL
// expiry; this deadline is a softer bound for handlers that honor
// cancellation, and should be kept below the lock TTL. A zero duration
// disables the deadline.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *execution.Execution, next Handler) error {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
