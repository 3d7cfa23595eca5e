package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/api"
	"github.com/xraph/taskq/cron"
	"github.com/xraph/taskq/runner"
)

// DefaultHTTPAddr is the serve address when none is configured.
const DefaultHTTPAddr = ":8080"

const defaultShutdownTimeout = 10 * time.Second

// forwardedFlags are passed on to spawned workers when set.
var forwardedFlags = []string{"log-level", "log-format", "driver", "dsn", "serializer"}

func (a *app) listenCommand() *cobra.Command {
	var (
		httpAddr     string
		maxProcesses int
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Supervise worker processes while jobs are pending",
		Long: "Poll the queue and spawn one \"work\" process per pending job, up to the\n" +
			"configured number of concurrent processes. On SIGINT or SIGTERM no new\n" +
			"workers start and live ones are awaited.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			q, closeFn, err := a.openQueue(ctx)
			defer a.closeQueue(closeFn)
			if err != nil {
				return err
			}

			exe := a.executable
			if exe == "" {
				if exe, err = os.Executable(); err != nil {
					return fmt.Errorf("taskq: locate worker binary: %w", err)
				}
			}

			opts, err := a.cfg.Runner.Options(a.logger)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-processes") {
				if maxProcesses < 1 {
					return fmt.Errorf("%w: max processes must be at least 1", taskq.ErrInvalidConfig)
				}
				opts = append(opts, runner.WithMaxProcesses(maxProcesses))
			}
			opts = append(opts,
				runner.WithExtensions(q.Extensions()),
				runner.WithStreams(cmd.OutOrStdout(), cmd.ErrOrStderr()),
			)
			r := runner.New(q, a.cfg.Runner.Launcher(exe, a.workerArgs(cmd)...), opts...)

			addr := a.cfg.HTTP.Addr
			if cmd.Flags().Changed("http") {
				addr = httpAddr
			}
			if addr == "" {
				return r.Listen(ctx)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return r.Listen(gctx) })
			g.Go(func() error {
				return a.serveHTTP(gctx, addr, api.New(q, api.WithLogger(a.logger)).Handler())
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "also serve the HTTP API on this address")
	cmd.Flags().IntVarP(&maxProcesses, "max-processes", "p", 0, "maximum concurrent worker processes")
	return cmd
}

// workerArgs is the command line of a spawned worker.
func (a *app) workerArgs(cmd *cobra.Command) []string {
	args := []string{"work"}
	if a.configPath != "" {
		args = append(args, "--config="+a.configPath)
	}
	for _, name := range forwardedFlags {
		if cmd.Flags().Changed(name) {
			v, _ := cmd.Flags().GetString(name)
			args = append(args, "--"+name+"="+v)
		}
	}
	return args
}

func (a *app) serveCommand() *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			q, closeFn, err := a.openQueue(ctx)
			defer a.closeQueue(closeFn)
			if err != nil {
				return err
			}

			addr := a.cfg.HTTP.Addr
			if cmd.Flags().Changed("http") || addr == "" {
				addr = httpAddr
			}
			return a.serveHTTP(ctx, addr, api.New(q, api.WithLogger(a.logger)).Handler())
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", DefaultHTTPAddr, "listen address")
	return cmd
}

// serveHTTP serves h until ctx is cancelled, then shuts down gracefully.
func (a *app) serveHTTP(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.logger.Info("http api listening", slog.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("taskq: http: %w", err)
	case <-ctx.Done():
	}

	timeout := a.cfg.HTTP.ShutdownTimeout.Std()
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	a.logger.Info("http api stopping", slog.String("addr", addr))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("taskq: http shutdown: %w", err)
	}
	return nil
}

func (a *app) scheduleCommand() *cobra.Command {
	var tick time.Duration
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Post recurring jobs from the configured cron entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(a.cfg.Cron) == 0 {
				return fmt.Errorf("%w: no cron entries configured", taskq.ErrInvalidConfig)
			}

			ctx := cmd.Context()
			q, closeFn, err := a.openQueue(ctx)
			defer a.closeQueue(closeFn)
			if err != nil {
				return err
			}

			s := cron.NewScheduler(q, cron.WithTickInterval(tick), cron.WithLogger(a.logger))
			for _, e := range a.cfg.Cron {
				if err := s.Add(e); err != nil {
					return err
				}
				next, _ := s.Next(e.Name)
				a.logger.Info("cron entry scheduled",
					slog.String("name", e.Name),
					slog.String("job", e.Route),
					slog.Time("next", next),
				)
			}
			return s.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&tick, "tick", time.Second, "how often to check for due entries")
	return cmd
}
