package job

import (
	"context"
	"encoding/json"

	"github.com/carebridge/scheduler/id"
)

// Handler is a type-specific unit of work the runner dispatches to.
//
// Execute performs the work for one ledger attempt and returns a JSON
// result that the runner records as the execution's output. Failure is
// signalled by returning an error — never by swallowing it — so the
// execution ledger stays an honest audit trail.
//
// Handlers must tolerate re-invocation: lock-expiry-driven re-runs are
// possible, so side effects are made idempotent via existence checks or
// idempotency keys rather than transactional exactly-once guarantees.
type Handler interface {
	// Type returns the job type this handler serves.
	Type() Type

	// Execute runs the work attributed to the given execution and tenant.
	Execute(ctx context.Context, executionID id.ExecutionID, tenantID string) (json.RawMessage, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	JobType Type
	Fn      func(ctx context.Context, executionID id.ExecutionID, tenantID string) (json.RawMessage, error)
}

// Type returns the job type this handler serves.
func (h HandlerFunc) Type() Type { return h.JobType }

// Execute calls the wrapped function.
func (h HandlerFunc) Execute(ctx context.Context, executionID id.ExecutionID, tenantID string) (json.RawMessage, error) {
	return h.Fn(ctx, executionID, tenantID)
}
