// Package aggregation defines the metric artifacts produced by the
// aggregation handler and their store contract. Artifacts are pure
// outputs: written once, tagged with the execution that computed them,
// and never mutated.
package aggregation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/carebridge/scheduler/id"
)

// Kind identifies which metric bundle an artifact holds.
type Kind string

const (
	// KindTaskMetrics covers completion rate and completion latency.
	KindTaskMetrics Kind = "task_metrics"
	// KindStaffing covers total shift hours and shift count.
	KindStaffing Kind = "staffing"
	// KindCompliance covers the evidence-compliance quality score.
	KindCompliance Kind = "compliance"
)

// Aggregation is one windowed metric bundle computed by an execution.
type Aggregation struct {
	ID       id.AggregationID `json:"id"`
	TenantID string           `json:"tenant_id"`
	Kind     Kind             `json:"kind"`

	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	// Metrics is the computed bundle, shape depending on Kind.
	Metrics json.RawMessage `json:"metrics"`

	// ExecutionID identifies the ledger attempt that computed this row.
	ExecutionID id.ExecutionID `json:"execution_id"`

	CreatedAt time.Time `json:"created_at"`
}

// ListOpts controls filtering for aggregation list queries.
type ListOpts struct {
	// Limit is the maximum number of rows to return. Zero means no limit.
	Limit int
	// TenantID filters by owning tenant. Empty means all tenants.
	TenantID string
	// Kind filters by metric bundle kind. Empty means all kinds.
	Kind Kind
}

// Store defines the persistence contract for aggregation artifacts.
type Store interface {
	// SaveAggregation persists a computed artifact.
	SaveAggregation(ctx context.Context, a *Aggregation) error

	// ListAggregations returns artifacts matching the given options,
	// newest period first.
	ListAggregations(ctx context.Context, opts ListOpts) ([]*Aggregation, error)
}
