package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	audithook "github.com/xraph/taskq/audit_hook"
	"github.com/xraph/taskq/codec"
	"github.com/xraph/taskq/middleware"
	"github.com/xraph/taskq/observability"
	"github.com/xraph/taskq/queue"
	relayhook "github.com/xraph/taskq/relay_hook"
	"github.com/xraph/taskq/store"
)

// openQueue opens the configured backend and wraps it in a queue. The
// returned close function is never nil.
func (a *app) openQueue(ctx context.Context) (*queue.Queue, store.CloseFunc, error) {
	backend, closeFn, err := store.Open(ctx, a.cfg.Store, store.WithLogger(a.logger))
	if err != nil {
		return nil, closeFn, err
	}

	c, err := codec.Get(a.cfg.Serializer)
	if err != nil {
		return nil, closeFn, err
	}

	mws := []middleware.Middleware{
		middleware.Recover(a.logger),
		middleware.Tracing(),
		middleware.Metrics(),
		middleware.Logging(a.logger),
	}
	if d := a.cfg.JobTimeout.Std(); d > 0 {
		mws = append(mws, middleware.Timeout(d))
	}
	mws = append(mws, a.mws...)

	opts := []queue.Option{
		queue.WithLogger(a.logger),
		queue.WithCodec(c),
		queue.WithReleaseOnFailure(a.cfg.ReleaseOnFailure),
		queue.WithMiddleware(mws...),
		queue.WithExtension(observability.NewMetricsExtension()),
	}
	if a.cfg.Audit {
		opts = append(opts, queue.WithExtension(
			audithook.New(audithook.SlogRecorder(a.logger), audithook.WithLogger(a.logger)),
		))
	}
	if a.cfg.Events.Redis != "" {
		hook, closeEvents, err := a.openEvents()
		if err != nil {
			return nil, closeFn, err
		}
		opts = append(opts, queue.WithExtension(hook))
		closeBackend := closeFn
		closeFn = func() error { return errors.Join(closeEvents(), closeBackend()) }
	}
	if a.router != nil {
		opts = append(opts, queue.WithRouter(a.router))
	}
	if a.tasks != nil {
		opts = append(opts, queue.WithTasks(a.tasks))
	}
	for _, e := range a.extensions {
		opts = append(opts, queue.WithExtension(e))
	}

	a.logger.Debug("queue opened", slog.String("backend", a.cfg.Store.Driver))
	return queue.New(backend, opts...), closeFn, nil
}

// openEvents connects the lifecycle event publisher.
func (a *app) openEvents() (*relayhook.Extension, func() error, error) {
	opt, err := redis.ParseURL(a.cfg.Events.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("taskq: events redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	hookOpts := []relayhook.Option{relayhook.WithLogger(a.logger)}
	if a.cfg.Events.Channel != "" {
		hookOpts = append(hookOpts, relayhook.WithChannel(a.cfg.Events.Channel))
	}
	return relayhook.New(relayhook.RedisPublisher(rdb), hookOpts...), rdb.Close, nil
}

func (a *app) closeQueue(closeFn store.CloseFunc) {
	if err := closeFn(); err != nil {
		a.logger.Warn("close backend", slog.String("error", err.Error()))
	}
}
