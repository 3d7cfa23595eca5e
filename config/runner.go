package config

import (
	"log/slog"

	"github.com/xraph/taskq/backoff"
	"github.com/xraph/taskq/runner"
)

// IdleStrategy parses IdleBackoff. Empty selects the default strategy.
func (r Runner) IdleStrategy() (backoff.Strategy, error) {
	if r.IdleBackoff == "" {
		return backoff.DefaultStrategy(), nil
	}
	return backoff.Parse(r.IdleBackoff)
}

// Options converts the settings into runner options.
func (r Runner) Options(logger *slog.Logger) ([]runner.Option, error) {
	idle, err := r.IdleStrategy()
	if err != nil {
		return nil, err
	}

	opts := []runner.Option{
		runner.WithMaxProcesses(r.MaxProcesses),
		runner.WithIdleBackoff(idle),
		runner.WithPropagateSignal(r.PropagateSignal),
		runner.WithLogger(logger),
	}
	if r.SlotWait > 0 {
		opts = append(opts, runner.WithSlotWait(r.SlotWait.Std()))
	}
	if r.SpawnSleep > 0 {
		opts = append(opts, runner.WithSpawnSleep(r.SpawnSleep.Std()))
	}
	if r.SpawnRate > 0 {
		opts = append(opts, runner.WithSpawnRate(r.SpawnRate, max(r.SpawnBurst, 1)))
	}
	if r.DrainInterval > 0 {
		opts = append(opts, runner.WithDrainInterval(r.DrainInterval.Std()))
	}
	return opts, nil
}

// Launcher returns an exec launcher for path and args with the worker
// directory, environment and timeouts applied.
func (r Runner) Launcher(path string, args ...string) *runner.ExecLauncher {
	return &runner.ExecLauncher{
		Path:        path,
		Args:        args,
		Dir:         r.Dir,
		Env:         r.Env,
		Timeout:     r.Timeout.Std(),
		IdleTimeout: r.IdleTimeout.Std(),
	}
}
