package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/taskq/backoff"
	"github.com/xraph/taskq/ext"
	"github.com/xraph/taskq/id"
)

// Sizer reports how many jobs are pending. *queue.Queue satisfies it.
type Sizer interface {
	Size(ctx context.Context) (int64, error)
}

// Defaults.
const (
	DefaultSlotWait      = time.Second
	DefaultDrainInterval = time.Second
)

// handle is the bookkeeping for one live worker.
type handle struct {
	proc    Process
	tag     string
	started time.Time
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
}

// Runner supervises worker processes. Listen must not be called
// concurrently.
type Runner struct {
	sizer    Sizer
	launcher Launcher

	maxProcs      int
	idle          backoff.Strategy
	slotWait      time.Duration
	spawnSleep    time.Duration
	limiter       *rate.Limiter
	propagate     bool
	drainInterval time.Duration
	stdout        io.Writer
	stderr        io.Writer
	extensions    *ext.Registry
	logger        *slog.Logger

	mu    sync.Mutex
	procs map[int]*handle
}

// New creates a Runner that launches workers with l while s reports
// pending jobs.
func New(s Sizer, l Launcher, opts ...Option) *Runner {
	r := &Runner{
		sizer:         s,
		launcher:      l,
		maxProcs:      1,
		idle:          backoff.DefaultStrategy(),
		slotWait:      DefaultSlotWait,
		drainInterval: DefaultDrainInterval,
		stdout:        os.Stdout,
		stderr:        os.Stderr,
		logger:        slog.Default(),
		procs:         make(map[int]*handle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Running returns the number of live worker processes.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// Listen runs the supervisor loop until ctx is cancelled, then drains
// live workers and returns nil.
func (r *Runner) Listen(ctx context.Context) error {
	r.logger.Info("runner listening", slog.Int("max_processes", r.maxProcs))

	idleTicks := 0
	for ctx.Err() == nil {
		size, err := r.sizer.Size(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Error("queue size failed", slog.String("error", err.Error()))
		}

		r.reap(ctx)

		switch running := r.Running(); {
		case size > 0 && running < r.maxProcs:
			idleTicks = 0
			if err := r.spawn(ctx); err != nil {
				if ctx.Err() == nil {
					r.logger.Error("launch failed", slog.String("error", err.Error()))
				}
				sleep(ctx, r.slotWait)
			}
		case size > 0:
			idleTicks = 0
			r.logger.Debug("all slots busy",
				slog.Int64("size", size),
				slog.Int("running", running),
			)
			sleep(ctx, r.slotWait)
		default:
			idleTicks++
			sleep(ctx, r.idle.Delay(idleTicks))
		}

		if r.spawnSleep > 0 {
			sleep(ctx, r.spawnSleep)
		}
	}

	r.drain(ctx)
	return nil
}

// spawn launches one worker. A failed launch leaves no process behind.
func (r *Runner) spawn(ctx context.Context) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("spawn rate: %w", err)
		}
	}

	h := &handle{tag: id.Process(), started: time.Now()}
	stdout, stderr := r.stdout, r.stderr
	if !r.sequential() {
		h.stdout, h.stderr = new(bytes.Buffer), new(bytes.Buffer)
		stdout, stderr = h.stdout, h.stderr
	}

	proc, err := r.launcher.Launch(ctx, stdout, stderr)
	if err != nil {
		return err
	}
	h.proc = proc

	r.mu.Lock()
	r.procs[proc.PID()] = h
	r.mu.Unlock()

	r.logger.Info("process started",
		slog.Int("pid", proc.PID()),
		slog.String("tag", h.tag),
	)
	r.extensions.EmitProcessStarted(ctx, proc.PID(), h.tag)

	if r.sequential() {
		select {
		case <-proc.Done():
			r.reap(ctx)
		case <-ctx.Done():
		}
	}
	return nil
}

func (r *Runner) sequential() bool { return r.maxProcs == 1 }

// reap removes every exited worker and reports its outcome.
func (r *Runner) reap(ctx context.Context) {
	r.mu.Lock()
	var exited []*handle
	for pid, h := range r.procs {
		select {
		case <-h.proc.Done():
			exited = append(exited, h)
			delete(r.procs, pid)
		default:
		}
	}
	r.mu.Unlock()

	for _, h := range exited {
		r.report(ctx, h)
	}
}

func (r *Runner) report(ctx context.Context, h *handle) {
	pid := h.proc.PID()
	elapsed := time.Since(h.started)
	exitErr := h.proc.Err()

	if exitErr == nil {
		r.logger.Info("process exited",
			slog.Int("pid", pid),
			slog.Duration("elapsed", elapsed),
		)
		if h.stdout != nil {
			_, _ = r.stdout.Write(h.stdout.Bytes())
			_, _ = r.stdout.Write(h.stderr.Bytes())
		}
	} else {
		attrs := []any{
			slog.Int("pid", pid),
			slog.Duration("elapsed", elapsed),
			slog.String("error", exitErr.Error()),
		}
		if h.stdout != nil {
			attrs = append(attrs,
				slog.String("stdout", h.stdout.String()),
				slog.String("stderr", h.stderr.String()),
			)
			_, _ = r.stderr.Write(h.stdout.Bytes())
			_, _ = r.stderr.Write(h.stderr.Bytes())
		}
		r.logger.Error("process failed", attrs...)
	}

	r.extensions.EmitProcessExited(context.WithoutCancel(ctx), pid, elapsed, exitErr)
}

// drain waits for every live worker, forwarding the shutdown signal on
// each pass when propagation is on.
func (r *Runner) drain(ctx context.Context) {
	sig := SignalFromContext(ctx)
	r.logger.Info("runner draining",
		slog.Int("running", r.Running()),
		slog.String("signal", sig.String()),
	)

	for {
		r.reap(ctx)
		if r.Running() == 0 {
			break
		}

		if r.propagate {
			r.mu.Lock()
			live := make([]*handle, 0, len(r.procs))
			for _, h := range r.procs {
				live = append(live, h)
			}
			r.mu.Unlock()

			for _, h := range live {
				if err := h.proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
					r.logger.Warn("signal failed",
						slog.Int("pid", h.proc.PID()),
						slog.String("error", err.Error()),
					)
				}
			}
		}

		time.Sleep(r.drainInterval)
	}

	r.logger.Info("runner stopped")
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
