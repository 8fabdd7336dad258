package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge/scheduler/care"
	"github.com/carebridge/scheduler/id"
	"github.com/carebridge/scheduler/job"
)

// Reports decides from calendar rules which downstream report requests
// to emit: daily always, weekly on Sundays, monthly on the first of the
// month. Rendering happens in an external collaborator; this handler
// only triggers it.
type Reports struct {
	sink care.ReportSink
	opts options
}

// NewReports creates the report scheduling handler.
func NewReports(sink care.ReportSink, opts ...Option) *Reports {
	return &Reports{
		sink: sink,
		opts: newOptions(opts...),
	}
}

// Type returns the job type this handler serves.
func (h *Reports) Type() job.Type { return job.TypeReports }

// reportsResult is the JSON output recorded on the execution.
type reportsResult struct {
	ReportsScheduled int               `json:"reports_scheduled"`
	Kinds            []care.ReportKind `json:"kinds"`
}

// Execute emits the report requests due today.
func (h *Reports) Execute(ctx context.Context, executionID id.ExecutionID, tenantID string) (json.RawMessage, error) {
	now := h.opts.clock().UTC()

	kinds := []care.ReportKind{care.ReportDaily}
	if now.Weekday() == time.Sunday {
		kinds = append(kinds, care.ReportWeekly)
	}
	if now.Day() == 1 {
		kinds = append(kinds, care.ReportMonthly)
	}

	for _, kind := range kinds {
		if err := h.sink.ScheduleReport(ctx, tenantID, kind, now); err != nil {
			return nil, fmt.Errorf("schedule %s report: %w", kind, err)
		}
	}

	result := reportsResult{
		ReportsScheduled: len(kinds),
		Kinds:            kinds,
	}

	h.opts.logger.Info("reports scheduled",
		slog.String("execution_id", executionID.String()),
		slog.String("tenant_id", tenantID),
		slog.Int("reports_scheduled", result.ReportsScheduled),
	)

	return json.Marshal(result)
}
