package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/taskq/job"
)

// Logging returns middleware that logs job start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (any, error) {
		logger.Info("job started",
			slog.String("job", j.Label()),
			slog.String("job_id", j.ID),
			slog.String("kind", j.Kind.String()),
		)

		start := time.Now()
		result, err := next(ctx)
		elapsed := time.Since(start)

		switch outcome(result, err) {
		case "error":
			logger.Error("job failed",
				slog.String("job", j.Label()),
				slog.String("job_id", j.ID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		case "rejected":
			logger.Warn("job rejected",
				slog.String("job", j.Label()),
				slog.String("job_id", j.ID),
				slog.Duration("elapsed", elapsed),
			)
		default:
			logger.Info("job completed",
				slog.String("job", j.Label()),
				slog.String("job_id", j.ID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return result, err
	}
}
