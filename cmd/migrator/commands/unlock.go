package commands

import (
	"context"

	"github.com/spf13/cobra"
)

// LockBreaker releases the runner lock regardless of who holds it.
type LockBreaker interface {
	ForceRelease(ctx context.Context) error
}

func NewUnlockCmd(ctx context.Context, lock LockBreaker) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Break a stale runner lock",
		Long: "Break the runner lock for this environment.\n" +
			"Only use this after the previous runner is confirmed dead;\n" +
			"a live runner whose lock is broken can corrupt the migration.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				cmd.PrintErrln("Refusing to break the lock without --force")
				return nil
			}

			err := lock.ForceRelease(cmd.Context())
			if err != nil {
				cmd.PrintErrf("Failed to release lock: %v\n", err)
				return err
			}

			cmd.Println("Lock released")

			return nil
		},
	}

	cmd.SetContext(ctx)
	cmd.Flags().BoolVar(&force, "force", false, "Confirm breaking the lock")

	return cmd
}
