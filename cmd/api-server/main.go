package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/openkcm/common-sdk/pkg/health"
	"github.com/openkcm/common-sdk/pkg/logger"
	"github.com/openkcm/common-sdk/pkg/otlp"
	"github.com/openkcm/common-sdk/pkg/status"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	// Registers the pgx stdlib driver used by the readiness database checker.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/careloop/careloop/internal/access"
	"github.com/careloop/careloop/internal/async"
	"github.com/careloop/careloop/internal/auditor"
	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/constants"
	"github.com/careloop/careloop/internal/daemon"
	"github.com/careloop/careloop/internal/db"
	"github.com/careloop/careloop/internal/db/dsn"
	"github.com/careloop/careloop/internal/directory"
	"github.com/careloop/careloop/internal/log"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/repo"
	"github.com/careloop/careloop/internal/repo/sql"
	"github.com/careloop/careloop/internal/session"
)

var (
	gracefulShutdownSec     = flag.Int64("graceful-shutdown", 1, "graceful shutdown seconds")
	gracefulShutdownMessage = flag.String("graceful-shutdown-message", "Graceful shutdown in %d seconds",
		"graceful shutdown message")
)

const (
	healthStatusTimeout = 5 * time.Second
	postgresDriverName  = "pgx"
)

// runFuncWithSignalHandling runs the given function with signal handling. When
// a CTRL-C is received, the context will be cancelled on which the function can
// act upon.
// It returns the exitCode
func runFuncWithSignalHandling(f func(context.Context, *config.Config) error) int {
	ctx, cancelOnSignal := signal.NotifyContext(
		context.Background(),
		os.Interrupt, syscall.SIGTERM,
	)
	defer cancelOnSignal()

	cfg, err := config.LoadConfig(commoncfg.WithEnvOverride(constants.APIName))
	if err != nil {
		log.Error(ctx, "Failed to load the configuration", err)
		_, _ = fmt.Fprintln(os.Stderr, err)

		return 1
	}

	log.Debug(ctx, "Starting the application", slog.Any("config", *cfg))

	err = f(ctx, cfg)
	if err != nil {
		log.Error(ctx, "Failed to start the application", err)
		_, _ = fmt.Fprintln(os.Stderr, err)

		return 1
	}

	// graceful shutdown so running goroutines may finish
	_, _ = fmt.Fprintln(os.Stderr, fmt.Sprintf(*gracefulShutdownMessage, *gracefulShutdownSec))
	time.Sleep(time.Duration(*gracefulShutdownSec) * time.Second)

	return 0
}

// - Starts the status server
// - Starts the careloop API server
func run(ctx context.Context, cfg *config.Config) error {
	err := logger.InitAsDefault(cfg.Logger, cfg.Application)
	if err != nil {
		return oops.In("main").Wrapf(err, "Failed to initialise the logger")
	}

	err = otlp.Init(ctx, &cfg.Application, &cfg.Telemetry, &cfg.Logger)
	if err != nil {
		return oops.In("main").Wrapf(err, "Failed to load the telemetry")
	}

	gormDB, err := db.StartDBConnection(ctx, cfg.Database)
	if err != nil {
		return oops.In("main").Wrapf(err, "failed to connect to the database")
	}

	repository := sql.NewRepository(gormDB)

	asyncApp, err := async.New(cfg)
	if err != nil {
		return oops.In("main").Wrapf(err, "failed to create the async app")
	}

	aud := auditor.New(asyncApp, cfg)
	dir := directory.NewManager(repository, aud)

	resolver, err := session.NewResolver(dir, repository, aud, cfg)
	if err != nil {
		return oops.In("main").Wrapf(err, "failed to create the session resolver")
	}

	engine := access.NewEngine(repository, aud)

	startStatusServer(ctx, cfg, repository)

	server := daemon.NewServer(cfg, daemon.NewMux(resolver, resolver, dir, engine))
	serverErr := server.Start(ctx)

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	err = server.Close(context.WithoutCancel(ctx))
	if err != nil {
		return oops.In("main").Wrapf(err, "closing server")
	}

	return nil
}

func monitorActiveOrganizations(ctx context.Context, repository repo.Repo) {
	gauge := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "careloop_directory_active_organizations",
			Help: "The number of active organizations in the tenant directory",
		},
	)
	prometheus.MustRegister(gauge)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info(ctx, "stopping organization count monitoring")
			return
		case <-ticker.C:
			count, err := repository.Count(ctx, model.Organization{}, *repo.NewQuery().
				Where(repo.ActiveField, true),
			)
			if err != nil {
				log.Error(ctx, "failed to count active organizations", err)
			} else {
				gauge.Set(float64(count))
			}
		}
	}
}

func startStatusServer(ctx context.Context, cfg *config.Config, repository repo.Repo) {
	liveness := status.WithLiveness(
		health.NewHandler(
			health.NewChecker(health.WithDisabledAutostart()),
		),
	)

	healthOptions := make([]health.Option, 0)
	healthOptions = append(healthOptions,
		health.WithDisabledAutostart(),
		health.WithTimeout(healthStatusTimeout),
		health.WithStatusListener(func(ctx context.Context, state health.State) {
			log.Info(ctx, "readiness status changed", slog.String("status", string(state.Status)))
		}),
	)

	dsnFromConfig, err := dsn.FromDBConfig(cfg.Database)
	if err != nil {
		log.Error(ctx, "Could not load DSN from database config", err)
	}

	healthOptions = append(healthOptions,
		health.WithDatabaseChecker(
			postgresDriverName,
			dsnFromConfig,
		),
	)

	readiness := status.WithReadiness(
		health.NewHandler(
			health.NewChecker(healthOptions...),
		),
	)

	if cfg.Telemetry.Metrics.Prometheus.Enabled {
		go monitorActiveOrganizations(ctx, repository)
	}

	go func() {
		err := status.Start(ctx, &cfg.BaseConfig, liveness, readiness)
		if err != nil {
			log.Error(ctx, "Failure on the status server", err)

			_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
		}
	}()
}

// main is the entry point for the application. It is intentionally kept small
// because it is hard to test, which would lower test coverage.
func main() {
	flag.Parse()

	exitCode := runFuncWithSignalHandling(run)
	os.Exit(exitCode)
}
