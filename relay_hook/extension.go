package relayhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/taskq/ext"
	"github.com/xraph/taskq/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Extension)(nil)
	_ ext.AfterPost     = (*Extension)(nil)
	_ ext.AfterRun      = (*Extension)(nil)
	_ ext.AfterRelease  = (*Extension)(nil)
	_ ext.ProcessExited = (*Extension)(nil)
)

// Extension publishes lifecycle events through a [Publisher]. Publish
// failures are logged and never affect the queue operation.
type Extension struct {
	pub      Publisher
	channel  string
	enabled  map[string]bool        // nil = all enabled
	payloads map[string]PayloadFunc // custom payload builders
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Extension that publishes through p.
func New(p Publisher, opts ...Option) *Extension {
	h := &Extension{
		pub:     p,
		channel: DefaultChannel,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements ext.Extension.
func (h *Extension) Name() string { return "relay-hook" }

// ── Job lifecycle hooks ─────────────────────────────

// OnAfterPost implements ext.AfterPost.
func (h *Extension) OnAfterPost(ctx context.Context, j *job.Job) error {
	return h.send(ctx, EventJobPosted, newJobPayload(j))
}

// OnAfterRun implements ext.AfterRun.
func (h *Extension) OnAfterRun(ctx context.Context, j *job.Job, result any, runErr error) error {
	switch {
	case runErr != nil:
		return h.send(ctx, EventJobFailed, &jobFailedPayload{
			jobPayload: *newJobPayload(j),
			Error:      runErr.Error(),
		})
	case !job.Succeeded(result):
		return h.send(ctx, EventJobRejected, newJobPayload(j))
	default:
		return h.send(ctx, EventJobCompleted, newJobPayload(j))
	}
}

// OnAfterRelease implements ext.AfterRelease.
func (h *Extension) OnAfterRelease(ctx context.Context, j *job.Job) error {
	return h.send(ctx, EventJobReleased, newJobPayload(j))
}

// ── Process lifecycle hooks ─────────────────────────

// OnProcessExited implements ext.ProcessExited.
func (h *Extension) OnProcessExited(ctx context.Context, pid int, elapsed time.Duration, exitErr error) error {
	p := &processPayload{PID: pid, ElapsedMs: elapsed.Milliseconds()}
	if exitErr != nil {
		p.Error = exitErr.Error()
	}
	return h.send(ctx, EventProcessExited, p)
}

// ── Internal helpers ────────────────────────────────

// send publishes an event if the event type is enabled.
func (h *Extension) send(ctx context.Context, eventType string, defaultData any) error {
	if h.enabled != nil && !h.enabled[eventType] {
		return nil
	}

	data := defaultData
	if fn, ok := h.payloads[eventType]; ok {
		custom, err := fn(defaultData)
		if err != nil {
			return fmt.Errorf("relay_hook: payload for %s: %w", eventType, err)
		}
		data = custom
	}

	payload, err := json.Marshal(&Event{Type: eventType, Time: h.now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("relay_hook: encode %s: %w", eventType, err)
	}

	if err := h.pub.Publish(ctx, h.channel, payload); err != nil {
		h.logger.Warn("relay_hook: publish failed",
			slog.String("event", eventType),
			slog.String("channel", h.channel),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// ── Default payload types ───────────────────────────

type jobPayload struct {
	JobID      string `json:"job_id"`
	Job        string `json:"job"`
	Kind       string `json:"kind"`
	QueueIndex string `json:"queue_index,omitempty"`
}

func newJobPayload(j *job.Job) *jobPayload {
	return &jobPayload{
		JobID:      j.ID,
		Job:        j.Label(),
		Kind:       j.Kind.String(),
		QueueIndex: j.Header[job.HeaderQueueIndex],
	}
}

type jobFailedPayload struct {
	jobPayload
	Error string `json:"error"`
}

type processPayload struct {
	PID       int    `json:"pid"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}
