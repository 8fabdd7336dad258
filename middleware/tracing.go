package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carebridge/scheduler/execution"
)

// tracerName is the instrumentation scope name for scheduler tracing.
const tracerName = "github.com/carebridge/scheduler"

// Tracing returns middleware that wraps handler execution in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a pass-through
// with zero overhead.
//
// Span attributes include: scheduler.execution.id, scheduler.job.id,
// scheduler.tenant_id, scheduler.retry_count, scheduler.runner.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, e *execution.Execution, next Handler) error {
		ctx, span := tracer.Start(ctx, "scheduler.execution.run",
			trace.WithAttributes(
				attribute.String("scheduler.execution.id", e.ID.String()),
				attribute.String("scheduler.job.id", e.JobID.String()),
				attribute.String("scheduler.tenant_id", e.TenantID),
				attribute.Int("scheduler.retry_count", e.RetryCount),
				attribute.String("scheduler.runner", e.RunnerIdentity),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
