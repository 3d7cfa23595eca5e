package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/job"
)

// RunError is returned by Run when a job's handler fails.
type RunError struct {
	JobID string
	Label string
	Err   error
}

func (e *RunError) Error() string {
	if e.JobID == "" {
		return fmt.Sprintf("taskq: job %s failed: %v", e.Label, e.Err)
	}
	return fmt.Sprintf("taskq: job %s (%s) failed: %v", e.Label, e.JobID, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Run executes a fetched job. Callable jobs run their task; regular jobs are
// dispatched by route. On success the job is deleted. On a handler error the
// job is released (when release-on-failure is enabled) and a *RunError is
// returned. A handler returning the boolean false releases the job without
// an error.
func (q *Queue) Run(ctx context.Context, j *job.Job) error {
	result, err := q.execute(ctx, j)
	if err != nil {
		var runErr *RunError
		if errors.As(err, &runErr) {
			q.releaseAfterFailure(ctx, j)
		}
		return err
	}

	if !job.Succeeded(result) {
		q.releaseAfterFailure(ctx, j)
		return nil
	}

	return q.Delete(ctx, j)
}

// Execute runs j without touching the backend: nothing is deleted or
// released afterwards. It serves one-off runs of jobs that were never
// posted. Handler failures are returned as *RunError.
func (q *Queue) Execute(ctx context.Context, j *job.Job) (any, error) {
	return q.execute(ctx, j)
}

func (q *Queue) execute(ctx context.Context, j *job.Job) (any, error) {
	if err := q.extensions.BeforeRun(ctx, j); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := q.chain(ctx, j, func(ctx context.Context) (any, error) {
		return q.invoke(ctx, j)
	})
	elapsed := time.Since(start)

	q.extensions.EmitAfterRun(ctx, j, result, err)

	if err != nil {
		q.logger.Error("job failed",
			slog.String("job_id", j.ID),
			slog.String("job", j.Label()),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return result, &RunError{JobID: j.ID, Label: j.Label(), Err: err}
	}

	if !job.Succeeded(result) {
		q.logger.Warn("job rejected",
			slog.String("job_id", j.ID),
			slog.String("job", j.Label()),
			slog.Duration("elapsed", elapsed),
		)
	}
	return result, nil
}

// invoke runs the job body. A panic is turned into an error so that a
// faulty handler never escapes Run without the job being released.
func (q *Queue) invoke(ctx context.Context, j *job.Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job %s: %v", j.Label(), r)
		}
	}()

	if j.Kind == job.KindCallable {
		return j.RunCallable(ctx)
	}
	if q.router == nil {
		return nil, taskq.ErrNoDispatcher
	}
	return q.router.Dispatch(ctx, j.Route, j.Data)
}

func (q *Queue) releaseAfterFailure(ctx context.Context, j *job.Job) {
	if !q.releaseOnFailure {
		return
	}
	if err := q.Release(ctx, j); err != nil {
		q.logger.Error("failed to release job",
			slog.String("job_id", j.ID),
			slog.String("job", j.Label()),
			slog.String("error", err.Error()),
		)
	}
}
