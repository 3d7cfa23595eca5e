// Package worker runs jobs in-process: a Pool of goroutines, each
// repeating the fetch and run cycle of a queue. It is the long-running
// alternative to the process-per-job supervisor in package runner, for
// handlers that are safe to run many times in one process.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/taskq/backoff"
)

// Consumer runs one fetch and run cycle. *queue.Queue satisfies it.
type Consumer interface {
	Work(ctx context.Context) (bool, error)
}

// Pool manages a set of concurrent worker goroutines that repeat the
// consumer cycle.
type Pool struct {
	consumer      Consumer
	concurrency   int
	idle          backoff.Strategy
	errorWait     time.Duration
	exitWhenEmpty bool
	logger        *slog.Logger

	processed atomic.Int64
	failed    atomic.Int64

	stopCh    chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
	cancelJob context.CancelFunc
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithIdleBackoff sets the wait after consecutive empty fetches.
func WithIdleBackoff(s backoff.Strategy) PoolOption {
	return func(p *Pool) { p.idle = s }
}

// WithErrorWait sets the wait after a fetch error.
func WithErrorWait(d time.Duration) PoolOption {
	return func(p *Pool) { p.errorWait = d }
}

// WithExitWhenEmpty makes each worker stop at the first empty fetch
// instead of waiting for more jobs.
func WithExitWhenEmpty(exit bool) PoolOption {
	return func(p *Pool) { p.exitWhenEmpty = exit }
}

// WithLogger sets the pool logger.
func WithLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a worker pool over c.
func NewPool(c Consumer, opts ...PoolOption) *Pool {
	p := &Pool{
		consumer:    c,
		concurrency: 1,
		idle:        backoff.DefaultStrategy(),
		errorWait:   time.Second,
		logger:      slog.Default(),
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Processed returns the number of jobs run, successful or not.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Failed returns the number of cycles that returned an error.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Done is closed once every worker goroutine has returned.
func (p *Pool) Done() <-chan struct{} { return p.done }

// Start launches the worker goroutines. It returns immediately. Jobs run
// with a context detached from ctx's cancellation; Stop decides when
// they are cut short.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancelJob = cancel

	p.logger.Info("worker pool starting",
		slog.Int("concurrency", p.concurrency),
		slog.Bool("exit_when_empty", p.exitWhenEmpty),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.loop(jobCtx)
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
	return nil
}

// Stop signals all workers to stop and waits for running jobs to finish.
// If ctx ends first, running jobs are cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping")
	close(p.stopCh)

	select {
	case <-p.done:
		p.logger.Info("worker pool stopped gracefully",
			slog.Int64("processed", p.Processed()),
		)
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelJob()
		<-p.done
	}
	p.cancelJob()
	return nil
}

// Run starts the pool and blocks until ctx is cancelled or every worker
// has exited, then stops it, allowing running jobs up to grace to finish.
func (p *Pool) Run(ctx context.Context, grace time.Duration) error {
	if err := p.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-p.done:
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	return p.Stop(stopCtx)
}

func (p *Pool) loop(ctx context.Context) {
	defer p.wg.Done()

	idleTicks := 0
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		processed, err := p.consumer.Work(ctx)
		if processed {
			p.processed.Add(1)
			idleTicks = 0
		}

		switch {
		case err != nil:
			p.failed.Add(1)
			p.logger.Debug("worker cycle failed", slog.String("error", err.Error()))
			if !processed {
				p.sleep(p.errorWait)
			}
		case processed:
		case p.exitWhenEmpty:
			return
		default:
			idleTicks++
			p.sleep(p.idle.Delay(idleTicks))
		}
	}
}

func (p *Pool) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.stopCh:
	}
}
