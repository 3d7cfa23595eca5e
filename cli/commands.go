package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/worker"
)

func (a *app) workCommand() *cobra.Command {
	var (
		loop        bool
		untilEmpty  bool
		concurrency int
		grace       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Fetch and run one job",
		Long: "Fetch and run one job, then exit. An empty queue is not an error.\n" +
			"With --loop, keep running jobs in-process on --concurrency goroutines\n" +
			"until interrupted, or until the queue is empty with --until-empty.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			q, closeFn, err := a.openQueue(ctx)
			defer a.closeQueue(closeFn)
			if err != nil {
				return err
			}

			if loop || untilEmpty {
				idle, err := a.cfg.Runner.IdleStrategy()
				if err != nil {
					return err
				}
				pool := worker.NewPool(q,
					worker.WithPoolConcurrency(concurrency),
					worker.WithIdleBackoff(idle),
					worker.WithExitWhenEmpty(untilEmpty),
					worker.WithLogger(a.logger),
				)
				if err := pool.Run(ctx, grace); err != nil {
					return err
				}
				a.logger.Info("worker finished",
					slog.Int64("processed", pool.Processed()),
					slog.Int64("failed", pool.Failed()),
				)
				return nil
			}

			processed, err := q.Work(ctx)
			if err != nil {
				return err
			}
			if !processed {
				a.logger.Debug("no job to run")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&loop, "loop", false, "keep running jobs until interrupted")
	cmd.Flags().BoolVar(&untilEmpty, "until-empty", false, "run jobs until the queue is empty")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "worker goroutines with --loop or --until-empty")
	cmd.Flags().DurationVar(&grace, "grace", 30*time.Second, "time running jobs get to finish on shutdown")
	return cmd
}

func (a *app) postCommand() *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "post <route> [data-json]",
		Short: "Post a job",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := jobFromArgs(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			q, closeFn, err := a.openQueue(ctx)
			defer a.closeQueue(closeFn)
			if err != nil {
				return err
			}

			var jobID string
			if index >= 0 {
				jobID, err = q.PostToQueue(ctx, j, index)
			} else {
				jobID, err = q.Post(ctx, j)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), jobID)
			return err
		},
	}
	cmd.Flags().IntVarP(&index, "queue", "q", -1, "member index of a multiple backend")
	return cmd
}

func (a *app) runTaskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run-task <route> [data-json]",
		Short: "Run a job now without posting it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := jobFromArgs(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			q, closeFn, err := a.openQueue(ctx)
			defer a.closeQueue(closeFn)
			if err != nil {
				return err
			}

			result, err := q.Execute(ctx, j)
			if err != nil {
				return err
			}
			if !job.Succeeded(result) {
				return fmt.Errorf("taskq: job %s reported failure", j.Label())
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
		},
	}
}

// peekedJob is the printed form of a job.
type peekedJob struct {
	ID     string     `json:"id"`
	Kind   string     `json:"kind"`
	Job    string     `json:"job"`
	Data   job.Data   `json:"data,omitempty"`
	Header job.Header `json:"header,omitempty"`
}

func (a *app) peekCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "peek [n]",
		Short: "Show the next jobs without consuming them",
		Long:  "Claim up to n jobs (default 1), print them as JSON lines and release them.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 1
			if len(args) == 1 {
				parsed, err := strconv.Atoi(args[0])
				if err != nil || parsed < 1 {
					return fmt.Errorf("%w: peek count %q", taskq.ErrInvalidConfig, args[0])
				}
				n = parsed
			}

			ctx := cmd.Context()
			q, closeFn, err := a.openQueue(ctx)
			defer a.closeQueue(closeFn)
			if err != nil {
				return err
			}

			jobs, err := q.Peek(ctx, n)
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, j := range jobs {
				if encErr := enc.Encode(peekedJob{
					ID:     j.ID,
					Kind:   j.Kind.String(),
					Job:    j.Label(),
					Data:   j.Data,
					Header: j.Header,
				}); encErr != nil {
					return encErr
				}
			}
			return err
		},
	}
}

func (a *app) sizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "size",
		Short: "Print the number of pending jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			q, closeFn, err := a.openQueue(ctx)
			defer a.closeQueue(closeFn)
			if err != nil {
				return err
			}

			n, err := q.Size(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		},
	}
}

func (a *app) purgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every pending job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			q, closeFn, err := a.openQueue(ctx)
			defer a.closeQueue(closeFn)
			if err != nil {
				return err
			}

			if err := q.Purge(ctx); err != nil {
				return err
			}
			a.logger.Info("queue purged", slog.String("backend", a.cfg.Store.Driver))
			return nil
		},
	}
}

// jobFromArgs builds a regular job from a route and optional JSON object.
func jobFromArgs(args []string) (*job.Job, error) {
	var data job.Data
	if len(args) == 2 && args[1] != "" {
		if err := json.Unmarshal([]byte(args[1]), &data); err != nil {
			return nil, fmt.Errorf("%w: data must be a JSON object: %v", taskq.ErrInvalidJob, err)
		}
	}
	return job.New(args[0], data), nil
}
