package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge/scheduler/aggregation"
	"github.com/carebridge/scheduler/care"
	"github.com/carebridge/scheduler/id"
	"github.com/carebridge/scheduler/job"
)

// aggregationWindow is the trailing period the metrics cover.
const aggregationWindow = 24 * time.Hour

// TaskMetrics is the task completion bundle.
type TaskMetrics struct {
	TasksCreated   int     `json:"tasks_created"`
	TasksCompleted int     `json:"tasks_completed"`
	CompletionRate float64 `json:"completion_rate"`
	// AvgLatencyMinutes is the mean time from task creation to completion.
	AvgLatencyMinutes float64 `json:"avg_latency_minutes"`
}

// StaffingMetrics is the shift coverage bundle.
type StaffingMetrics struct {
	ShiftCount int     `json:"shift_count"`
	TotalHours float64 `json:"total_hours"`
}

// ComplianceMetrics is the evidence-compliance quality bundle.
type ComplianceMetrics struct {
	EvidenceRequired int `json:"evidence_required"`
	EvidencePresent  int `json:"evidence_present"`
	// Score is in [0, 1]; 1 when no completed task required evidence.
	Score float64 `json:"score"`
}

// Aggregator computes the trailing-window metric bundles and persists
// each as an aggregation artifact tagged with the computing execution.
// Artifacts are pure appends, so a re-run writes a fresh set rather than
// corrupting an old one.
type Aggregator struct {
	tasks    care.TaskStore
	staffing care.Staffing
	sink     aggregation.Store
	opts     options
}

// NewAggregator creates the metric aggregation handler.
func NewAggregator(tasks care.TaskStore, staffing care.Staffing, sink aggregation.Store, opts ...Option) *Aggregator {
	return &Aggregator{
		tasks:    tasks,
		staffing: staffing,
		sink:     sink,
		opts:     newOptions(opts...),
	}
}

// Type returns the job type this handler serves.
func (h *Aggregator) Type() job.Type { return job.TypeAggregation }

// aggregationResult is the JSON output recorded on the execution.
type aggregationResult struct {
	PeriodStart time.Time         `json:"period_start"`
	PeriodEnd   time.Time         `json:"period_end"`
	Tasks       TaskMetrics       `json:"tasks"`
	Staffing    StaffingMetrics   `json:"staffing"`
	Compliance  ComplianceMetrics `json:"compliance"`
}

// Execute computes and persists the three metric bundles.
func (h *Aggregator) Execute(ctx context.Context, executionID id.ExecutionID, tenantID string) (json.RawMessage, error) {
	end := h.opts.clock().UTC()
	start := end.Add(-aggregationWindow)

	created, err := h.tasks.ListTasksCreatedBetween(ctx, tenantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list created tasks: %w", err)
	}
	completed, err := h.tasks.ListTasksCompletedBetween(ctx, tenantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list completed tasks: %w", err)
	}
	shifts, err := h.staffing.ListShiftsBetween(ctx, tenantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}

	result := aggregationResult{
		PeriodStart: start,
		PeriodEnd:   end,
		Tasks:       computeTaskMetrics(created, completed),
		Staffing:    computeStaffingMetrics(shifts),
		Compliance:  computeComplianceMetrics(completed),
	}

	bundles := []struct {
		kind    aggregation.Kind
		metrics any
	}{
		{aggregation.KindTaskMetrics, result.Tasks},
		{aggregation.KindStaffing, result.Staffing},
		{aggregation.KindCompliance, result.Compliance},
	}
	for _, b := range bundles {
		kind := b.kind
		payload, marshalErr := json.Marshal(b.metrics)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshal %s metrics: %w", kind, marshalErr)
		}
		artifact := &aggregation.Aggregation{
			ID:          id.NewAggregationID(),
			TenantID:    tenantID,
			Kind:        kind,
			PeriodStart: start,
			PeriodEnd:   end,
			Metrics:     payload,
			ExecutionID: executionID,
			CreatedAt:   end,
		}
		if saveErr := h.sink.SaveAggregation(ctx, artifact); saveErr != nil {
			return nil, fmt.Errorf("save %s aggregation: %w", kind, saveErr)
		}
	}

	h.opts.logger.Info("aggregation computed",
		slog.String("execution_id", executionID.String()),
		slog.String("tenant_id", tenantID),
		slog.Int("tasks_created", result.Tasks.TasksCreated),
		slog.Int("tasks_completed", result.Tasks.TasksCompleted),
		slog.Int("shift_count", result.Staffing.ShiftCount),
		slog.Float64("compliance_score", result.Compliance.Score),
	)

	return json.Marshal(result)
}

func computeTaskMetrics(created, completed []*care.Task) TaskMetrics {
	m := TaskMetrics{
		TasksCreated:   len(created),
		TasksCompleted: len(completed),
	}
	if m.TasksCreated > 0 {
		m.CompletionRate = float64(m.TasksCompleted) / float64(m.TasksCreated)
	}

	var totalLatency time.Duration
	var measured int
	for _, t := range completed {
		if t.CompletedAt == nil {
			continue
		}
		totalLatency += t.CompletedAt.Sub(t.CreatedAt)
		measured++
	}
	if measured > 0 {
		m.AvgLatencyMinutes = totalLatency.Minutes() / float64(measured)
	}
	return m
}

func computeStaffingMetrics(shifts []*care.Shift) StaffingMetrics {
	m := StaffingMetrics{ShiftCount: len(shifts)}
	for _, s := range shifts {
		m.TotalHours += s.Hours()
	}
	return m
}

func computeComplianceMetrics(completed []*care.Task) ComplianceMetrics {
	var m ComplianceMetrics
	for _, t := range completed {
		if !t.RequiresEvidence {
			continue
		}
		m.EvidenceRequired++
		if t.HasEvidence {
			m.EvidencePresent++
		}
	}
	if m.EvidenceRequired == 0 {
		m.Score = 1
	} else {
		m.Score = float64(m.EvidencePresent) / float64(m.EvidenceRequired)
	}
	return m
}
