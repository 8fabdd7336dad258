package dlq

import (
	"encoding/json"
	"time"

	"github.com/carebridge/scheduler/id"
)

// Entry represents a job that has exhausted its retry budget and been
// moved to the dead letter queue for manual triage. Entries are immutable
// once written except for LastFailedAt (refreshed on duplicate promotion)
// and ResolvedAt (set by manual resolution).
type Entry struct {
	ID          id.DLQID       `json:"id"`
	JobID       id.JobID       `json:"job_id"`
	ExecutionID id.ExecutionID `json:"execution_id"`
	TenantID    string         `json:"tenant_id"`

	// JobType is recorded as a plain string so triage tooling does not
	// need the handler registry to read the queue.
	JobType string `json:"job_type"`

	Reason        string          `json:"reason"`
	InputParams   json.RawMessage `json:"input_params,omitempty"`
	RetryAttempts int             `json:"retry_attempts"`

	FirstFailedAt time.Time  `json:"first_failed_at"`
	LastFailedAt  time.Time  `json:"last_failed_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Resolved reports whether the entry has been manually cleared.
func (e *Entry) Resolved() bool {
	return e.ResolvedAt != nil
}
