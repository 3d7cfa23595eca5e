// Command taskq is the stock taskq binary. It carries only the built-in
// routes below; applications that post their own routes build their own
// binary around package cli.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xraph/taskq/cli"
	"github.com/xraph/taskq/runner"
)

func main() {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		signal.Stop(sigs)
		runner.Shutdown(cancel, sig)
	}()

	root := cli.New(cli.WithRouter(builtinRouter()))
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "taskq:", err)
		os.Exit(1)
	}
}
