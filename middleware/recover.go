package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/taskq/job"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (result any, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job handler panicked",
					slog.String("job", j.Label()),
					slog.String("job_id", j.ID),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				result = nil
				retErr = fmt.Errorf("panic in job %s: %v", j.Label(), r)
			}
		}()
		return next(ctx)
	}
}
