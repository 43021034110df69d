package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/careloop/careloop/internal/migration"
)

func NewStepCmd(ctx context.Context, coordinator Coordinator) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Apply the next migration transition",
		Long: "Apply exactly one migration transition under the runner lock.\n" +
			"A blocked step prints the offending records and leaves the state unchanged.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, err := coordinator.Step(cmd.Context())
			if err != nil {
				if errors.Is(err, migration.ErrMigrationComplete) {
					cmd.Printf("Migration already complete, state: %s\n", state)
					return nil
				}

				var blocked *migration.BlockedError
				if errors.As(err, &blocked) {
					cmd.PrintErrf("Step blocked: %v\n", blocked)
					return err
				}

				cmd.PrintErrf("Step failed: %v\n", err)

				return err
			}

			cmd.Printf("Advanced to state: %s\n", state)

			return nil
		},
	}

	cmd.SetContext(ctx)

	return cmd
}
