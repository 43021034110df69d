package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/careloop/careloop/internal/migration"
)

func NewRunCmd(ctx context.Context, coordinator Coordinator) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the migration until complete or blocked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := coordinator.Run(cmd.Context())
			if err != nil {
				var blocked *migration.BlockedError
				if errors.As(err, &blocked) {
					cmd.PrintErrf("Migration blocked: %v\n", blocked)
					return err
				}

				cmd.PrintErrf("Migration run failed: %v\n", err)

				return err
			}

			cmd.Println("Migration complete")

			return nil
		},
	}

	cmd.SetContext(ctx)

	return cmd
}
