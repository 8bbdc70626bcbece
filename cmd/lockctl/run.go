package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/kneutral-org/ops-worker/internal/lock"
)

func newRunCmd(c *cli) *cobra.Command {
	var skipExitCode int

	cmd := &cobra.Command{
		Use:   "run <label> -- <command> [args...]",
		Short: "Run a command if the named lock is free",
		Long: `Run a command while holding the named lock.

If another process holds the lock, or the lock service is unreachable or not
configured, the command is skipped and lockctl exits with --skip-exit-code.
The command's own exit code is propagated.`,
		Example: `  lockctl run nightly-report -- /usr/local/bin/report --since 24h`,
		Args: func(cmd *cobra.Command, args []string) error {
			dash := cmd.ArgsLenAtDash()
			if dash != 1 || len(args) < 2 {
				return fmt.Errorf("usage: %s", cmd.Use)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			guard, err := lock.NewGuardFromConfig(c.lockConfig(), c.logger())
			if err != nil {
				return err
			}

			res, err := runGuarded(cmd.Context(), guard, args[0], args[1:], cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if !res.Acquired {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped: lock %q not acquired (%s)\n", args[0], res.Reason)
				if skipExitCode != 0 {
					return &skippedError{label: args[0], reason: res.Reason, code: skipExitCode}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&skipExitCode, "skip-exit-code", 0, "exit code when the command was skipped")
	return cmd
}

// skippedError carries the exit code for a run skipped with --skip-exit-code.
type skippedError struct {
	label  string
	reason lock.Reason
	code   int
}

func (e *skippedError) Error() string {
	return fmt.Sprintf("lock %q not acquired (%s)", e.label, e.reason)
}

// ExitCode is the process exit status for the skipped run.
func (e *skippedError) ExitCode() int {
	return e.code
}

// runGuarded executes argv under the lock for label.
// The returned error is the command's error; lock failures are reported in the Result.
func runGuarded(ctx context.Context, guard *lock.Guard, label string, argv []string, stdout, stderr io.Writer) (lock.Result, error) {
	return guard.WithLock(ctx, label, func(ctx context.Context) error {
		command := exec.CommandContext(ctx, argv[0], argv[1:]...)
		command.Stdin = os.Stdin
		command.Stdout = stdout
		command.Stderr = stderr
		return command.Run()
	})
}
