package middleware

import (
	"context"
	"time"

	"github.com/xraph/taskq/job"
)

// Timeout returns middleware that enforces an execution deadline on every
// job. Handlers should honor ctx and return context.DeadlineExceeded. A
// non-positive d disables the deadline.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *job.Job, next Handler) (any, error) {
		if d <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
