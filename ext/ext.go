package ext

import (
	"context"
	"time"

	"github.com/xraph/taskq/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Before hooks (veto-capable)
// ──────────────────────────────────────────────────

// BeforePost is called before a job is handed to the backend. A non-nil
// error vetoes the post.
type BeforePost interface {
	OnBeforePost(ctx context.Context, j *job.Job) error
}

// BeforeFetch is called before the backend is asked for a job. A non-nil
// error vetoes the fetch.
type BeforeFetch interface {
	OnBeforeFetch(ctx context.Context) error
}

// BeforeRun is called before a claimed job executes. A non-nil error
// vetoes the run; the job stays claimed.
type BeforeRun interface {
	OnBeforeRun(ctx context.Context, j *job.Job) error
}

// BeforeDelete is called before a job is removed. A non-nil error vetoes
// the delete.
type BeforeDelete interface {
	OnBeforeDelete(ctx context.Context, j *job.Job) error
}

// BeforeRelease is called before a job is requeued. A non-nil error
// vetoes the release.
type BeforeRelease interface {
	OnBeforeRelease(ctx context.Context, j *job.Job) error
}

// ──────────────────────────────────────────────────
// After hooks (informational)
// ──────────────────────────────────────────────────

// AfterPost is called after the backend accepted a job. j.ID is set.
type AfterPost interface {
	OnAfterPost(ctx context.Context, j *job.Job) error
}

// AfterFetch is called after a job was claimed.
type AfterFetch interface {
	OnAfterFetch(ctx context.Context, j *job.Job) error
}

// AfterRun is called after execution with the handler result and error.
type AfterRun interface {
	OnAfterRun(ctx context.Context, j *job.Job, result any, runErr error) error
}

// AfterDelete is called after a job was removed.
type AfterDelete interface {
	OnAfterDelete(ctx context.Context, j *job.Job) error
}

// AfterRelease is called after a job was requeued.
type AfterRelease interface {
	OnAfterRelease(ctx context.Context, j *job.Job) error
}

// ──────────────────────────────────────────────────
// Process supervisor hooks
// ──────────────────────────────────────────────────

// ProcessStarted is called when the runner spawns a worker process.
type ProcessStarted interface {
	OnProcessStarted(ctx context.Context, pid int, tag string) error
}

// ProcessExited is called when the runner reaps a worker process. exitErr
// is nil for a clean exit.
type ProcessExited interface {
	OnProcessExited(ctx context.Context, pid int, elapsed time.Duration, exitErr error) error
}
