package async

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueTask(t *testing.T) {
	ctx := context.Background()

	t.Run("Should enqueue through the client", func(t *testing.T) {
		client := &MockClient{}
		app := &App{asynqClient: client}

		task := asynq.NewTask("audit:deliver", []byte(`{}`))

		info, err := app.EnqueueTask(ctx, task)
		require.NoError(t, err)
		assert.Equal(t, "mock-task-id", info.ID)
		assert.Equal(t, 1, client.CallCount)
		assert.Equal(t, task, client.LastTask)
	})

	t.Run("Should wrap client failures", func(t *testing.T) {
		client := &MockClient{Error: errors.New("redis down")}
		app := &App{asynqClient: client}

		_, err := app.EnqueueTask(ctx, asynq.NewTask("audit:deliver", nil))
		assert.ErrorIs(t, err, ErrEnqueueingTask)
	})
}

func TestRegisterTasks(t *testing.T) {
	app := &App{tasks: make(map[string]TaskHandler)}

	app.RegisterTasks(context.Background(), []TaskHandler{stubHandler{}})

	assert.Contains(t, app.tasks, "stub:task")
}

type stubHandler struct{}

func (stubHandler) ProcessTask(_ context.Context, _ *asynq.Task) error { return nil }
func (stubHandler) TaskType() string                                   { return "stub:task" }
