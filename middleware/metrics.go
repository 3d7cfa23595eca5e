package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/taskq/job"
)

// meterName is the instrumentation scope name for taskq metrics.
const meterName = "github.com/xraph/taskq"

// Metrics returns middleware that records per-job execution metrics using
// the global OTel MeterProvider.
//
// Instruments:
//   - taskq.job.duration (Float64Histogram): execution time in seconds
//   - taskq.job.executions (Int64Counter): total executions
//
// Both carry the attributes job and status ("ok", "error" or "rejected").
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// The OTel API returns usable noop instruments alongside any error.
	duration, _ := meter.Float64Histogram(
		"taskq.job.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"taskq.job.executions",
		metric.WithDescription("Total number of job executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, j *job.Job, next Handler) (any, error) {
		start := time.Now()
		result, err := next(ctx)
		elapsed := time.Since(start).Seconds()

		attrs := metric.WithAttributes(
			attribute.String("job", j.Label()),
			attribute.String("status", outcome(result, err)),
		)
		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return result, err
	}
}
