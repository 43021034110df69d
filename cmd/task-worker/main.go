package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/openkcm/common-sdk/pkg/logger"
	"github.com/samber/oops"

	"github.com/careloop/careloop/internal/async"
	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/constants"
	careloopLog "github.com/careloop/careloop/internal/log"
)

func start() error {
	ctx, cancelOnSignal := signal.NotifyContext(
		context.Background(),
		os.Interrupt, syscall.SIGTERM,
	)

	defer cancelOnSignal()

	cfg, err := config.LoadConfig(commoncfg.WithEnvOverride(constants.APIName + "_worker"))
	if err != nil {
		return oops.In("main").Wrapf(err, "failed to load the config")
	}

	err = logger.InitAsDefault(cfg.Logger, cfg.Application)
	if err != nil {
		return oops.In("main").
			Wrapf(err, "Failed to initialise the logger")
	}

	worker, err := async.New(cfg)
	if err != nil {
		return oops.In("main").Wrapf(err, "failed to create the worker")
	}

	go func() {
		<-ctx.Done()

		err := worker.Shutdown(context.WithoutCancel(ctx))
		if err != nil {
			careloopLog.Error(ctx, "failed to shut down the worker", err)
		}
	}()

	err = worker.RunWorker(ctx)
	if err != nil {
		return oops.In("main").Wrapf(err, "failed to start the worker")
	}

	careloopLog.Info(ctx, "shutting down worker")

	return nil
}

func main() {
	err := start()
	if err != nil {
		log.Fatal(err)
	}
}
