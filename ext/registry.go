package ext

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/job"
)

// entry pairs a hook implementation with the extension name captured at
// registration time.
type entry[H any] struct {
	name string
	hook H
}

// Registry holds registered extensions and dispatches lifecycle events to
// them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook. A nil
// *Registry emits nothing.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	beforePost     []entry[BeforePost]
	beforeFetch    []entry[BeforeFetch]
	beforeRun      []entry[BeforeRun]
	beforeDelete   []entry[BeforeDelete]
	beforeRelease  []entry[BeforeRelease]
	afterPost      []entry[AfterPost]
	afterFetch     []entry[AfterFetch]
	afterRun       []entry[AfterRun]
	afterDelete    []entry[AfterDelete]
	afterRelease   []entry[AfterRelease]
	processStarted []entry[ProcessStarted]
	processExited  []entry[ProcessExited]
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable hook
// caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(BeforePost); ok {
		r.beforePost = append(r.beforePost, entry[BeforePost]{name, h})
	}
	if h, ok := e.(BeforeFetch); ok {
		r.beforeFetch = append(r.beforeFetch, entry[BeforeFetch]{name, h})
	}
	if h, ok := e.(BeforeRun); ok {
		r.beforeRun = append(r.beforeRun, entry[BeforeRun]{name, h})
	}
	if h, ok := e.(BeforeDelete); ok {
		r.beforeDelete = append(r.beforeDelete, entry[BeforeDelete]{name, h})
	}
	if h, ok := e.(BeforeRelease); ok {
		r.beforeRelease = append(r.beforeRelease, entry[BeforeRelease]{name, h})
	}
	if h, ok := e.(AfterPost); ok {
		r.afterPost = append(r.afterPost, entry[AfterPost]{name, h})
	}
	if h, ok := e.(AfterFetch); ok {
		r.afterFetch = append(r.afterFetch, entry[AfterFetch]{name, h})
	}
	if h, ok := e.(AfterRun); ok {
		r.afterRun = append(r.afterRun, entry[AfterRun]{name, h})
	}
	if h, ok := e.(AfterDelete); ok {
		r.afterDelete = append(r.afterDelete, entry[AfterDelete]{name, h})
	}
	if h, ok := e.(AfterRelease); ok {
		r.afterRelease = append(r.afterRelease, entry[AfterRelease]{name, h})
	}
	if h, ok := e.(ProcessStarted); ok {
		r.processStarted = append(r.processStarted, entry[ProcessStarted]{name, h})
	}
	if h, ok := e.(ProcessExited); ok {
		r.processExited = append(r.processExited, entry[ProcessExited]{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension {
	if r == nil {
		return nil
	}
	return r.extensions
}

// ──────────────────────────────────────────────────
// Before emitters
// ──────────────────────────────────────────────────

// BeforePost runs BeforePost hooks in order and stops at the first veto.
func (r *Registry) BeforePost(ctx context.Context, j *job.Job) error {
	if r == nil {
		return nil
	}
	for _, e := range r.beforePost {
		if err := e.hook.OnBeforePost(ctx, j); err != nil {
			return r.veto("OnBeforePost", e.name, err)
		}
	}
	return nil
}

// BeforeFetch runs BeforeFetch hooks in order and stops at the first veto.
func (r *Registry) BeforeFetch(ctx context.Context) error {
	if r == nil {
		return nil
	}
	for _, e := range r.beforeFetch {
		if err := e.hook.OnBeforeFetch(ctx); err != nil {
			return r.veto("OnBeforeFetch", e.name, err)
		}
	}
	return nil
}

// BeforeRun runs BeforeRun hooks in order and stops at the first veto.
func (r *Registry) BeforeRun(ctx context.Context, j *job.Job) error {
	if r == nil {
		return nil
	}
	for _, e := range r.beforeRun {
		if err := e.hook.OnBeforeRun(ctx, j); err != nil {
			return r.veto("OnBeforeRun", e.name, err)
		}
	}
	return nil
}

// BeforeDelete runs BeforeDelete hooks in order and stops at the first veto.
func (r *Registry) BeforeDelete(ctx context.Context, j *job.Job) error {
	if r == nil {
		return nil
	}
	for _, e := range r.beforeDelete {
		if err := e.hook.OnBeforeDelete(ctx, j); err != nil {
			return r.veto("OnBeforeDelete", e.name, err)
		}
	}
	return nil
}

// BeforeRelease runs BeforeRelease hooks in order and stops at the first veto.
func (r *Registry) BeforeRelease(ctx context.Context, j *job.Job) error {
	if r == nil {
		return nil
	}
	for _, e := range r.beforeRelease {
		if err := e.hook.OnBeforeRelease(ctx, j); err != nil {
			return r.veto("OnBeforeRelease", e.name, err)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// After emitters
// ──────────────────────────────────────────────────

// EmitAfterPost notifies all extensions that implement AfterPost.
func (r *Registry) EmitAfterPost(ctx context.Context, j *job.Job) {
	if r == nil {
		return
	}
	for _, e := range r.afterPost {
		if err := e.hook.OnAfterPost(ctx, j); err != nil {
			r.logHookError("OnAfterPost", e.name, err)
		}
	}
}

// EmitAfterFetch notifies all extensions that implement AfterFetch.
func (r *Registry) EmitAfterFetch(ctx context.Context, j *job.Job) {
	if r == nil {
		return
	}
	for _, e := range r.afterFetch {
		if err := e.hook.OnAfterFetch(ctx, j); err != nil {
			r.logHookError("OnAfterFetch", e.name, err)
		}
	}
}

// EmitAfterRun notifies all extensions that implement AfterRun.
func (r *Registry) EmitAfterRun(ctx context.Context, j *job.Job, result any, runErr error) {
	if r == nil {
		return
	}
	for _, e := range r.afterRun {
		if err := e.hook.OnAfterRun(ctx, j, result, runErr); err != nil {
			r.logHookError("OnAfterRun", e.name, err)
		}
	}
}

// EmitAfterDelete notifies all extensions that implement AfterDelete.
func (r *Registry) EmitAfterDelete(ctx context.Context, j *job.Job) {
	if r == nil {
		return
	}
	for _, e := range r.afterDelete {
		if err := e.hook.OnAfterDelete(ctx, j); err != nil {
			r.logHookError("OnAfterDelete", e.name, err)
		}
	}
}

// EmitAfterRelease notifies all extensions that implement AfterRelease.
func (r *Registry) EmitAfterRelease(ctx context.Context, j *job.Job) {
	if r == nil {
		return
	}
	for _, e := range r.afterRelease {
		if err := e.hook.OnAfterRelease(ctx, j); err != nil {
			r.logHookError("OnAfterRelease", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Process emitters
// ──────────────────────────────────────────────────

// EmitProcessStarted notifies all extensions that implement ProcessStarted.
func (r *Registry) EmitProcessStarted(ctx context.Context, pid int, tag string) {
	if r == nil {
		return
	}
	for _, e := range r.processStarted {
		if err := e.hook.OnProcessStarted(ctx, pid, tag); err != nil {
			r.logHookError("OnProcessStarted", e.name, err)
		}
	}
}

// EmitProcessExited notifies all extensions that implement ProcessExited.
func (r *Registry) EmitProcessExited(ctx context.Context, pid int, elapsed time.Duration, exitErr error) {
	if r == nil {
		return
	}
	for _, e := range r.processExited {
		if err := e.hook.OnProcessExited(ctx, pid, elapsed, exitErr); err != nil {
			r.logHookError("OnProcessExited", e.name, err)
		}
	}
}

// veto wraps a before-hook error so callers can match both taskq.ErrVetoed
// and the hook's own error.
func (r *Registry) veto(hook, extName string, err error) error {
	r.logger.Debug("operation vetoed",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%w by %s: %w", taskq.ErrVetoed, extName, err)
}

// logHookError logs a warning when an after hook returns an error. These
// errors are never propagated.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
