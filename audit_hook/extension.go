package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/xraph/taskq/ext"
	"github.com/xraph/taskq/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Extension)(nil)
	_ ext.AfterPost     = (*Extension)(nil)
	_ ext.AfterFetch    = (*Extension)(nil)
	_ ext.AfterRun      = (*Extension)(nil)
	_ ext.AfterDelete   = (*Extension)(nil)
	_ ext.AfterRelease  = (*Extension)(nil)
	_ ext.ProcessExited = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// SlogRecorder writes audit events as log records: info and warning
// severities at their slog levels, critical at error.
func SlogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, evt *AuditEvent) error {
		level := slog.LevelInfo
		switch evt.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityCritical:
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("outcome", evt.Outcome),
		}
		if evt.Reason != "" {
			attrs = append(attrs, slog.String("reason", evt.Reason))
		}
		if len(evt.Metadata) > 0 {
			attrs = append(attrs, slog.Any("metadata", evt.Metadata))
		}
		logger.LogAttrs(ctx, level, "audit", attrs...)
		return nil
	})
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges queue lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Job lifecycle hooks ─────────────────────────────

// OnAfterPost implements ext.AfterPost.
func (e *Extension) OnAfterPost(ctx context.Context, j *job.Job) error {
	return e.recordJob(ctx, ActionJobPosted, SeverityInfo, OutcomeSuccess, j, nil)
}

// OnAfterFetch implements ext.AfterFetch.
func (e *Extension) OnAfterFetch(ctx context.Context, j *job.Job) error {
	return e.recordJob(ctx, ActionJobFetched, SeverityInfo, OutcomeSuccess, j, nil,
		"receive_count", j.Header[job.HeaderReceiveCount],
	)
}

// OnAfterRun implements ext.AfterRun. A handler error is a failure, a
// false result is a rejection.
func (e *Extension) OnAfterRun(ctx context.Context, j *job.Job, result any, runErr error) error {
	switch {
	case runErr != nil:
		return e.recordJob(ctx, ActionJobFailed, SeverityCritical, OutcomeFailure, j, runErr)
	case !job.Succeeded(result):
		return e.recordJob(ctx, ActionJobRejected, SeverityWarning, OutcomeFailure, j, nil)
	default:
		return e.recordJob(ctx, ActionJobCompleted, SeverityInfo, OutcomeSuccess, j, nil)
	}
}

// OnAfterDelete implements ext.AfterDelete.
func (e *Extension) OnAfterDelete(ctx context.Context, j *job.Job) error {
	return e.recordJob(ctx, ActionJobDeleted, SeverityInfo, OutcomeSuccess, j, nil)
}

// OnAfterRelease implements ext.AfterRelease.
func (e *Extension) OnAfterRelease(ctx context.Context, j *job.Job) error {
	return e.recordJob(ctx, ActionJobReleased, SeverityWarning, OutcomeSuccess, j, nil)
}

// ── Process lifecycle hooks ─────────────────────────

// OnProcessExited implements ext.ProcessExited.
func (e *Extension) OnProcessExited(ctx context.Context, pid int, elapsed time.Duration, exitErr error) error {
	action, severity, outcome := ActionProcessExited, SeverityInfo, OutcomeSuccess
	if exitErr != nil {
		action, severity, outcome = ActionProcessFailed, SeverityCritical, OutcomeFailure
	}
	return e.record(ctx, action, severity, outcome,
		ResourceProcess, strconv.Itoa(pid), CategoryProcess, exitErr,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ── Internal helpers ────────────────────────────────

func (e *Extension) recordJob(
	ctx context.Context,
	action, severity, outcome string,
	j *job.Job,
	err error,
	kvPairs ...any,
) error {
	kvPairs = append(kvPairs,
		"job", j.Label(),
		"kind", j.Kind.String(),
	)
	if idx := j.Header[job.HeaderQueueIndex]; idx != "" {
		kvPairs = append(kvPairs, "queue_index", idx)
	}
	return e.record(ctx, action, severity, outcome,
		ResourceJob, j.ID, CategoryJob, err, kvPairs...)
}

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
// Empty string values are skipped.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		if s, isString := kvPairs[i+1].(string); isString && s == "" {
			continue
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
