package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/careloop/careloop/internal/migration"
	"github.com/careloop/careloop/internal/model"
)

// Coordinator drives the tenant migration state machine.
type Coordinator interface {
	Status(ctx context.Context) (*model.MigrationRun, error)
	Step(ctx context.Context) (model.MigrationState, error)
	Run(ctx context.Context) error
}

func NewStatusCmd(ctx context.Context, coordinator Coordinator) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the migration state for this environment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			run, err := coordinator.Status(cmd.Context())
			if err != nil {
				cmd.PrintErrf("Failed to load migration status: %v\n", err)
				return err
			}

			cmd.Printf("Environment: %s\n", run.Environment)
			cmd.Printf("State:       %s\n", run.State)

			if next, ok := migration.NextTransition(run.State); ok {
				cmd.Printf("Next step:   %s\n", next)
			} else {
				cmd.Println("Next step:   none, migration is complete")
			}

			if run.LastError != "" {
				cmd.Printf("Last error:  %s\n", run.LastError)
			}

			return nil
		},
	}

	cmd.SetContext(ctx)

	return cmd
}
