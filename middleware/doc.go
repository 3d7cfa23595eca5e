// Package middleware provides composable middleware for job execution.
//
// A [Middleware] wraps the call that runs a claimed job, whether that is a
// routed handler or a callable task. Middleware are composed with [Chain]
// and applied right-to-left: the first middleware in the slice is the
// outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] logs label, id, duration and outcome
//   - [Recover] converts panics to errors so the queue can release the job
//   - [Timeout] cancels the job context after a fixed duration
//   - [Tracing] wraps execution in an OpenTelemetry span
//   - [Metrics] records duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, j *job.Job, next middleware.Handler) (any, error) {
//	        // pre-processing
//	        result, err := next(ctx)
//	        // post-processing
//	        return result, err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting. Returning the handler's result unchanged preserves the
// false-means-failure convention.
package middleware
