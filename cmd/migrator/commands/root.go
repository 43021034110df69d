package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the migrator root command. With --sleep the process
// idles until a termination signal, so the container stays up between exec
// driven migration steps.
func NewRootCmd(ctx context.Context) *cobra.Command {
	var sleep bool

	rootCmd := &cobra.Command{
		Use:   "migrator",
		Short: "Tenant migration CLI",
		Long:  "Inspects and drives the tenant data migration, one verifiable step at a time.",

		Run: func(cmd *cobra.Command, _ []string) {
			if sleep {
				idleUntilSignal(cmd)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&sleep, "sleep", false, "idle until a termination signal")
	rootCmd.SetContext(ctx)

	return rootCmd
}

func idleUntilSignal(cmd *cobra.Command) {
	cmd.Println("Migrator idle, waiting for the next step...")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	<-sigs
	cmd.Println("Shutting down...")
}
