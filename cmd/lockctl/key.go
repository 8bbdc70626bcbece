package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kneutral-org/ops-worker/internal/lock"
)

func newKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key <label>",
		Short: "Print the advisory lock key for a label",
		Long: `Print the 64-bit key a label maps to, e.g. to look it up in pg_locks:

  SELECT * FROM pg_locks WHERE locktype = 'advisory'
    AND ((classid::bigint << 32) | objid::bigint) = <key>;`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), lock.KeyString(args[0]))
			return err
		},
	}
}
