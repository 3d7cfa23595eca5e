package runner

import (
	"context"
	"errors"
	"os"
	"syscall"
)

// SignalCause is the cancellation cause recorded by Shutdown.
type SignalCause struct {
	Signal os.Signal
}

func (c *SignalCause) Error() string {
	return "taskq/runner: received " + c.Signal.String()
}

// Shutdown cancels a supervisor context with sig as the cause.
func Shutdown(cancel context.CancelCauseFunc, sig os.Signal) {
	cancel(&SignalCause{Signal: sig})
}

// SignalFromContext returns the signal recorded by Shutdown, or SIGTERM
// when the context was cancelled some other way.
func SignalFromContext(ctx context.Context) os.Signal {
	var sc *SignalCause
	if errors.As(context.Cause(ctx), &sc) {
		return sc.Signal
	}
	return syscall.SIGTERM
}
