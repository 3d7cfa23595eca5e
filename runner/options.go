package runner

import (
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/taskq/backoff"
	"github.com/xraph/taskq/ext"
)

// Option configures a Runner.
type Option func(*Runner)

// WithMaxProcesses caps live worker processes. 1 makes the pool
// sequential with streamed output.
func WithMaxProcesses(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxProcs = n
		}
	}
}

// WithIdleBackoff sets the wait after each consecutive tick that found
// the queue empty.
func WithIdleBackoff(s backoff.Strategy) Option {
	return func(r *Runner) { r.idle = s }
}

// WithSlotWait sets the wait when jobs are pending but every slot is busy.
func WithSlotWait(d time.Duration) Option {
	return func(r *Runner) { r.slotWait = d }
}

// WithSpawnSleep sets a fixed sleep applied after every tick.
func WithSpawnSleep(d time.Duration) Option {
	return func(r *Runner) { r.spawnSleep = d }
}

// WithSpawnRate throttles launches to limit per second with burst.
func WithSpawnRate(limit float64, burst int) Option {
	return func(r *Runner) {
		if limit > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(limit), max(burst, 1))
		}
	}
}

// WithPropagateSignal forwards the shutdown signal to live children
// while draining.
func WithPropagateSignal(propagate bool) Option {
	return func(r *Runner) { r.propagate = propagate }
}

// WithDrainInterval sets the pause between drain passes.
func WithDrainInterval(d time.Duration) Option {
	return func(r *Runner) { r.drainInterval = d }
}

// WithStreams sets where worker output goes. Defaults are os.Stdout and
// os.Stderr.
func WithStreams(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithExtensions sets the registry notified on process start and exit.
func WithExtensions(reg *ext.Registry) Option {
	return func(r *Runner) { r.extensions = reg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}
