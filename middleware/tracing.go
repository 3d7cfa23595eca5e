package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/taskq/job"
)

// tracerName is the instrumentation scope name for taskq tracing.
const tracerName = "github.com/xraph/taskq"

// Tracing returns middleware that wraps job execution in an OpenTelemetry
// span using the global TracerProvider. With no provider configured the
// noop tracer makes this a pass-through.
//
// Span attributes: taskq.job.id, taskq.job.label, taskq.job.kind, and
// taskq.queue_index when the job came from a composite queue.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (any, error) {
		attrs := []attribute.KeyValue{
			attribute.String("taskq.job.id", j.ID),
			attribute.String("taskq.job.label", j.Label()),
			attribute.String("taskq.job.kind", j.Kind.String()),
		}
		if idx, ok := j.Header[job.HeaderQueueIndex]; ok {
			attrs = append(attrs, attribute.String("taskq.queue_index", idx))
		}

		ctx, span := tracer.Start(ctx, "taskq.job.run",
			trace.WithAttributes(attrs...),
			trace.WithSpanKind(trace.SpanKindConsumer),
		)
		defer span.End()

		result, err := next(ctx)
		switch outcome(result, err) {
		case "error":
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case "rejected":
			span.SetStatus(codes.Error, "handler returned false")
		default:
			span.SetStatus(codes.Ok, "")
		}

		return result, err
	}
}
