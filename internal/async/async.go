package async

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/hibiken/asynq"
	"github.com/openkcm/common-sdk/pkg/commoncfg"

	"github.com/careloop/careloop/internal/async/tasks"
	conf "github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/docstore"
	"github.com/careloop/careloop/internal/errs"
	"github.com/careloop/careloop/internal/log"
)

var (
	ErrLoadingQueueHost = errors.New("error loading task queue host")
	ErrACLPassword      = errors.New("error loading task queue password")
	ErrACLUsername      = errors.New("error loading task queue username")
)

// AsyncClient abstracts the asynq client for testing
type AsyncClient interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Ping() error
	Close() error
}

// TaskHandler defines the interface for handling async
type TaskHandler interface {
	ProcessTask(ctx context.Context, task *asynq.Task) error
	TaskType() string
}

// App manages task processing and worker functionality
type App struct {
	asynqClient    AsyncClient
	asynqServer    *asynq.Server
	asynqServerCfg asynq.Config
	taskQueueCfg   asynq.RedisClientOpt
	tasks          map[string]TaskHandler
	cfg            *conf.Config
}

// New creates a new instance of App
func New(cfg *conf.Config) (*App, error) {
	redisOpts, err := buildRedisClientOpt(cfg.Redis)
	if err != nil {
		return nil, err
	}

	return &App{
		taskQueueCfg: redisOpts,
		asynqClient:  asynq.NewClient(redisOpts),
		tasks:        make(map[string]TaskHandler),
		cfg:          cfg,
	}, nil
}

// RegisterTasks registers multiple task handlers
func (a *App) RegisterTasks(ctx context.Context, handlers []TaskHandler) {
	for _, handler := range handlers {
		taskType := handler.TaskType()
		a.tasks[taskType] = handler
		log.Info(ctx, "Registered task", slog.String("Name", taskType))
	}
}

// RunWorker starts the worker process to process the tasks
func (a *App) RunWorker(ctx context.Context) error {
	log.Info(ctx, "Starting async worker")

	client, err := docstore.NewClient(a.cfg.Redis)
	if err != nil {
		return errs.Wrapf(err, "failed to create audit sink client")
	}

	sink := docstore.NewAuditLog(client)

	log.Info(ctx, "Registering Tasks")
	a.RegisterTasks(ctx,
		[]TaskHandler{
			tasks.NewAuditDeliverer(sink),
		})

	a.asynqServer = asynq.NewServer(a.taskQueueCfg, a.asynqServerCfg)

	// Create a new mux and register all task handlers
	mux := asynq.NewServeMux()

	for taskName, handler := range a.tasks {
		h := handler

		mux.HandleFunc(taskName, func(ctx context.Context, task *asynq.Task) error {
			return h.ProcessTask(ctx, task)
		})
	}

	log.Info(ctx, "Starting worker server")

	err = a.asynqServer.Run(mux)
	if err != nil {
		return errs.Wrap(ErrStartingWorker, err)
	}

	return nil
}

// EnqueueTask is used to run tasks
func (a *App) EnqueueTask(
	ctx context.Context,
	task *asynq.Task,
	opts ...asynq.Option,
) (*asynq.TaskInfo, error) {
	ctx = log.InjectTask(ctx, task)
	log.Debug(ctx, "Enqueuing task to be processed")

	info, err := a.asynqClient.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, errs.Wrap(ErrEnqueueingTask, err)
	}

	log.Debug(ctx, "Enqueued task")

	return info, nil
}

// Shutdown gracefully shuts down the worker
func (a *App) Shutdown(ctx context.Context) error {
	log.Info(ctx, "Starting async app shutdown")

	if a.asynqServer != nil {
		a.asynqServer.Shutdown()
	}

	if a.asynqClient != nil {
		err := a.asynqClient.Close()
		if err != nil {
			return errs.Wrap(ErrClientShutdown, err)
		}
	}

	log.Info(ctx, "Async app shutdown completed")

	return nil
}

func buildRedisClientOpt(cfg conf.Redis) (asynq.RedisClientOpt, error) {
	host, err := commoncfg.LoadValueFromSourceRef(cfg.Host)
	if err != nil {
		return asynq.RedisClientOpt{}, errs.Wrap(ErrLoadingQueueHost, err)
	}

	clientOpt := asynq.RedisClientOpt{
		Addr: net.JoinHostPort(string(host), cfg.Port),
	}

	if cfg.ACL.Enabled {
		username, err := commoncfg.LoadValueFromSourceRef(cfg.ACL.Username)
		if err != nil {
			return asynq.RedisClientOpt{}, ErrACLUsername
		}

		password, err := commoncfg.LoadValueFromSourceRef(cfg.ACL.Password)
		if err != nil {
			return asynq.RedisClientOpt{}, ErrACLPassword
		}

		clientOpt.Username = string(username)
		clientOpt.Password = string(password)
	}

	return clientOpt, nil
}
