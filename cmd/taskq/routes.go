package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/taskq/job"
)

// sleepArgs is the data of the "sleep" route.
type sleepArgs struct {
	Duration string `json:"duration"`
}

// builtinRouter registers routes useful for smoke-testing a deployment:
// "log" writes its data to the log, "sleep" waits for data.duration.
func builtinRouter() *job.Router {
	r := job.NewRouter()
	r.Handle("log", func(ctx context.Context, data job.Data) (any, error) {
		slog.InfoContext(ctx, "log job", slog.Any("data", data))
		return nil, nil
	})
	job.Register(r, job.NewDefinition("sleep", func(ctx context.Context, in sleepArgs) error {
		d, err := time.ParseDuration(in.Duration)
		if err != nil {
			return err
		}
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))
	return r
}
