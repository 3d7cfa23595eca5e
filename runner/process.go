package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrProcessTimeout marks a worker killed for exceeding its hard timeout.
	ErrProcessTimeout = errors.New("taskq/runner: process timed out")
	// ErrProcessIdle marks a worker killed for producing no output within
	// its idle timeout.
	ErrProcessIdle = errors.New("taskq/runner: process idle timeout")
)

// Process is a launched worker.
type Process interface {
	// PID returns the OS process id.
	PID() int
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// Err returns the exit error after Done is closed; nil for exit status 0.
	Err() error
	// Signal delivers sig to the process.
	Signal(sig os.Signal) error
}

// Launcher starts worker processes. Output is written to stdout and stderr.
type Launcher interface {
	Launch(ctx context.Context, stdout, stderr io.Writer) (Process, error)
}

// ExecLauncher launches Path with Args as an OS process in its own process
// group, so terminal signals reach only the supervisor.
type ExecLauncher struct {
	Path string
	Args []string
	// Dir is the working directory; empty means the supervisor's.
	Dir string
	// Env entries (KEY=VALUE) are appended to the supervisor's environment.
	Env []string
	// Timeout kills the process after this wall-clock duration.
	Timeout time.Duration
	// IdleTimeout kills the process when it writes no output for this long.
	IdleTimeout time.Duration
}

var _ Launcher = (*ExecLauncher)(nil)

// Launch starts the process. The context is not bound to the process
// lifetime; the supervisor drains children on shutdown instead.
func (l *ExecLauncher) Launch(_ context.Context, stdout, stderr io.Writer) (Process, error) {
	cmd := exec.Command(l.Path, l.Args...) //nolint:gosec // path comes from supervisor config
	cmd.Dir = l.Dir
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}
	cmd.WaitDelay = time.Second
	setProcessGroup(cmd)

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	p.touch()
	cmd.Stdout = &activityWriter{w: stdout, p: p}
	cmd.Stderr = &activityWriter{w: stderr, p: p}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("taskq/runner: start %s: %w", l.Path, err)
	}

	var timer *time.Timer
	if l.Timeout > 0 {
		timer = time.AfterFunc(l.Timeout, func() { p.kill(ErrProcessTimeout) })
	}
	stopWatch := make(chan struct{})
	if l.IdleTimeout > 0 {
		go p.watchIdle(l.IdleTimeout, stopWatch)
	}

	go func() {
		err := cmd.Wait()
		if timer != nil {
			timer.Stop()
		}
		close(stopWatch)
		if reason, ok := p.reason.Load().(error); ok {
			if err == nil {
				err = reason
			} else {
				err = fmt.Errorf("%w: %w", reason, err)
			}
		}
		p.err = err
		close(p.done)
	}()

	return p, nil
}

type execProcess struct {
	cmd      *exec.Cmd
	done     chan struct{}
	err      error
	lastSeen atomic.Int64
	reason   atomic.Value
	killOnce sync.Once
}

func (p *execProcess) PID() int              { return p.cmd.Process.Pid }
func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) Err() error {
	<-p.done
	return p.err
}

func (p *execProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) touch() {
	p.lastSeen.Store(time.Now().UnixNano())
}

func (p *execProcess) kill(reason error) {
	p.killOnce.Do(func() {
		p.reason.Store(reason)
		killProcessGroup(p.cmd)
	})
}

func (p *execProcess) watchIdle(idle time.Duration, stop <-chan struct{}) {
	interval := idle / 4
	if interval > time.Second {
		interval = time.Second
	}
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if time.Since(time.Unix(0, p.lastSeen.Load())) > idle {
				p.kill(ErrProcessIdle)
				return
			}
		}
	}
}

// activityWriter records the time of the last write for idle detection.
type activityWriter struct {
	w io.Writer
	p *execProcess
}

func (a *activityWriter) Write(b []byte) (int, error) {
	a.p.touch()
	if a.w == nil {
		return len(b), nil
	}
	return a.w.Write(b)
}
