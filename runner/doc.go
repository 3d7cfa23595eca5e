// Package runner supervises a pool of worker processes.
//
// A Runner polls the queue depth. While jobs are pending and a slot is
// free it launches one worker process per tick. Each process runs a single
// fetch-and-run cycle (taskq work). Finished processes are reaped on the
// next tick, and failed ones have their output logged. Job execution never
// happens inside the supervisor, so a crashing job cannot take it down.
//
// With WithMaxProcesses(1) the pool is sequential. Each launch blocks
// until the child exits, and its output streams live.
//
// Cancelling the context passed to Listen stops new launches. Listen then
// drains: it optionally forwards the shutdown signal to live children and
// returns only once every child has exited. Use Shutdown to cancel with a
// signal as the cause:
//
//	ctx, cancel := context.WithCancelCause(context.Background())
//	go func() {
//	    sig := <-sigCh
//	    runner.Shutdown(cancel, sig)
//	}()
//	err := r.Listen(ctx)
package runner
