package queue

import (
	"log/slog"

	"github.com/xraph/taskq/codec"
	"github.com/xraph/taskq/ext"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/middleware"
)

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the queue logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithCodec sets the envelope codec. The default is codec.JSON.
func WithCodec(c codec.Codec) Option {
	return func(q *Queue) { q.codec = c }
}

// WithRouter sets the dispatcher that resolves regular job routes.
func WithRouter(d job.Dispatcher) Option {
	return func(q *Queue) { q.router = d }
}

// WithTasks sets the codec for callable task descriptors. The default is
// an empty *job.TaskRegistry, which refuses every task.
func WithTasks(tc job.TaskCodec) Option {
	return func(q *Queue) { q.tasks = tc }
}

// WithExtension registers a lifecycle extension.
func WithExtension(e ext.Extension) Option {
	return func(q *Queue) { q.pending = append(q.pending, e) }
}

// WithMiddleware appends middleware around job execution.
func WithMiddleware(m ...middleware.Middleware) Option {
	return func(q *Queue) { q.mws = append(q.mws, m...) }
}

// WithReleaseOnFailure controls whether Run releases a job whose handler
// failed. It is enabled by default.
func WithReleaseOnFailure(enabled bool) Option {
	return func(q *Queue) { q.releaseOnFailure = enabled }
}
