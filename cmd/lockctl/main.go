// Package main provides lockctl, a CLI that runs commands under the ops-worker advisory lock.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run())
}

// run executes the root command and maps its error to an exit status.
// Errors carrying an exit code (a failed command, a skipped run) already
// reported themselves.
func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var coded exitCoder
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}

// exitCoder is implemented by *exec.ExitError and *skippedError.
type exitCoder interface {
	ExitCode() int
}
