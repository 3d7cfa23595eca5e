package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/taskq/ext"
	"github.com/xraph/taskq/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*MetricsExtension)(nil)
	_ ext.AfterPost     = (*MetricsExtension)(nil)
	_ ext.AfterFetch    = (*MetricsExtension)(nil)
	_ ext.AfterRun      = (*MetricsExtension)(nil)
	_ ext.AfterDelete   = (*MetricsExtension)(nil)
	_ ext.AfterRelease  = (*MetricsExtension)(nil)
	_ ext.ProcessExited = (*MetricsExtension)(nil)
)

const meterName = "github.com/xraph/taskq/observability"

// MetricsExtension counts queue lifecycle events.
//
// Instruments (Int64Counter):
//   - taskq.job.posted, taskq.job.fetched, taskq.job.deleted,
//     taskq.job.released: attribute job
//   - taskq.job.failed: attribute job, counted when a run returns an error
//     or the boolean false
//   - taskq.process.exited: attribute status ("ok" or "error")
type MetricsExtension struct {
	Posted   metric.Int64Counter
	Fetched  metric.Int64Counter
	Deleted  metric.Int64Counter
	Released metric.Int64Counter
	Failed   metric.Int64Counter
	Exited   metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension on meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		// The OTel API returns a usable noop instrument alongside any error.
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	return &MetricsExtension{
		Posted:   counter("taskq.job.posted", "Jobs accepted by the backend"),
		Fetched:  counter("taskq.job.fetched", "Jobs claimed from the backend"),
		Deleted:  counter("taskq.job.deleted", "Jobs removed after completion"),
		Released: counter("taskq.job.released", "Jobs returned to the pending pool"),
		Failed:   counter("taskq.job.failed", "Job runs that failed"),
		Exited:   counter("taskq.process.exited", "Worker processes reaped"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func jobAttr(j *job.Job) metric.AddOption {
	return metric.WithAttributes(attribute.String("job", j.Label()))
}

// ── Queue lifecycle hooks ───────────────────────────

// OnAfterPost implements ext.AfterPost.
func (m *MetricsExtension) OnAfterPost(ctx context.Context, j *job.Job) error {
	m.Posted.Add(ctx, 1, jobAttr(j))
	return nil
}

// OnAfterFetch implements ext.AfterFetch.
func (m *MetricsExtension) OnAfterFetch(ctx context.Context, j *job.Job) error {
	m.Fetched.Add(ctx, 1, jobAttr(j))
	return nil
}

// OnAfterRun implements ext.AfterRun.
func (m *MetricsExtension) OnAfterRun(ctx context.Context, j *job.Job, result any, runErr error) error {
	if runErr != nil || !job.Succeeded(result) {
		m.Failed.Add(ctx, 1, jobAttr(j))
	}
	return nil
}

// OnAfterDelete implements ext.AfterDelete.
func (m *MetricsExtension) OnAfterDelete(ctx context.Context, j *job.Job) error {
	m.Deleted.Add(ctx, 1, jobAttr(j))
	return nil
}

// OnAfterRelease implements ext.AfterRelease.
func (m *MetricsExtension) OnAfterRelease(ctx context.Context, j *job.Job) error {
	m.Released.Add(ctx, 1, jobAttr(j))
	return nil
}

// ── Process hooks ───────────────────────────────────

// OnProcessExited implements ext.ProcessExited.
func (m *MetricsExtension) OnProcessExited(ctx context.Context, _ int, _ time.Duration, exitErr error) error {
	status := "ok"
	if exitErr != nil {
		status = "error"
	}
	m.Exited.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	return nil
}
