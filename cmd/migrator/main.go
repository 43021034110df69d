package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/openkcm/common-sdk/pkg/logger"
	"github.com/samber/oops"

	// Registers the pgx stdlib driver used by the schema migrator.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/careloop/careloop/cmd/migrator/commands"
	"github.com/careloop/careloop/internal/async"
	"github.com/careloop/careloop/internal/auditor"
	"github.com/careloop/careloop/internal/blobstore"
	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/constants"
	"github.com/careloop/careloop/internal/db"
	"github.com/careloop/careloop/internal/docstore"
	"github.com/careloop/careloop/internal/log"
	"github.com/careloop/careloop/internal/migration"
	"github.com/careloop/careloop/internal/repo/sql"
)

func runFuncWithSignalHandling(f func(context.Context, *config.Config) error) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create signal channel
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Handle signals in a separate goroutine
	go func() {
		<-sigChan
		log.Info(ctx, "Interrupt signal received, shutting down...")
		cancel()
	}()

	cfg, err := config.LoadConfig(commoncfg.WithEnvOverride(constants.APIName + "_migrator"))
	if err != nil {
		log.Error(ctx, "Failed to load config:", err)

		return 1
	}

	log.Debug(ctx, "Starting the application", slog.Any("config", cfg))

	err = f(ctx, cfg)
	if err != nil {
		log.Error(ctx, "Failed running migrator", err)
		return 1
	}

	return 0
}

func run(ctx context.Context, cfg *config.Config) error {
	err := logger.InitAsDefault(cfg.Logger, cfg.Application)
	if err != nil {
		return oops.In("main").Wrapf(err, "Failed to initialise the logger")
	}

	gormDB, err := db.StartDBConnection(ctx, cfg.Database)
	if err != nil {
		return oops.In("main").Wrapf(err, "failed to connect to the database")
	}

	repository := sql.NewRepository(gormDB)

	migrator, err := db.NewMigrator(cfg)
	if err != nil {
		return oops.In("main").Wrapf(err, "failed to create the schema migrator")
	}

	redisClient, err := docstore.NewClient(cfg.Redis)
	if err != nil {
		return oops.In("main").Wrapf(err, "failed to connect to the document store")
	}

	blobs, err := blobstore.NewMinioStore(cfg.Blob)
	if err != nil {
		return oops.In("main").Wrapf(err, "failed to connect to the blob store")
	}

	asyncApp, err := async.New(cfg)
	if err != nil {
		return oops.In("main").Wrapf(err, "failed to create the async app")
	}

	lock := migration.NewLock(redisClient, cfg.Migration.Environment, cfg.Migration.LockTTL)

	coordinator := migration.NewCoordinator(
		repository,
		migrator,
		docstore.NewRedisStore(redisClient),
		blobs,
		lock,
		auditor.New(asyncApp, cfg),
		cfg,
	)

	rootCmd := commands.NewRootCmd(ctx)
	rootCmd.AddCommand(commands.NewStatusCmd(ctx, coordinator))
	rootCmd.AddCommand(commands.NewStepCmd(ctx, coordinator))
	rootCmd.AddCommand(commands.NewRunCmd(ctx, coordinator))
	rootCmd.AddCommand(commands.NewUnlockCmd(ctx, lock))

	err = rootCmd.ExecuteContext(ctx)
	if err != nil {
		return oops.In("main").Wrapf(err, "error executing command")
	}

	return nil
}

func main() {
	exitCode := runFuncWithSignalHandling(run)
	os.Exit(exitCode)
}
