package auditor_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/careloop/internal/auditor"
	"github.com/careloop/careloop/internal/config"
	clcontext "github.com/careloop/careloop/utils/context"
)

type captureEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (c *captureEnqueuer) EnqueueTask(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}

	c.tasks = append(c.tasks, task)

	return &asynq.TaskInfo{ID: "task-id"}, nil
}

func setupAuditor(t *testing.T) (*auditor.Auditor, *captureEnqueuer) {
	t.Helper()

	enqueuer := &captureEnqueuer{}
	cfg := &config.Config{}
	cfg.Audit.QueueName = "audit"

	return auditor.New(enqueuer, cfg), enqueuer
}

func lastEvent(t *testing.T, enqueuer *captureEnqueuer) auditor.Event {
	t.Helper()

	require.NotEmpty(t, enqueuer.tasks)
	task := enqueuer.tasks[len(enqueuer.tasks)-1]
	assert.Equal(t, auditor.TaskTypeDeliver, task.Type())

	var event auditor.Event
	require.NoError(t, json.Unmarshal(task.Payload(), &event))

	return event
}

func TestAuditorEmit(t *testing.T) {
	ctx := context.Background()

	t.Run("Should enqueue a business event", func(t *testing.T) {
		aud, enqueuer := setupAuditor(t)
		orgID := uuid.New()

		err := aud.OrganizationCreated(ctx, orgID, "Sunrise Care")
		require.NoError(t, err)

		event := lastEvent(t, enqueuer)
		assert.Equal(t, auditor.KindBusiness, event.Kind)
		assert.Equal(t, "organization.created", event.Action)
		assert.Equal(t, orgID, event.OrganizationID)
		assert.Equal(t, "Sunrise Care", event.Detail["name"])
		assert.False(t, event.OccurredAt.IsZero())
	})

	t.Run("Should mark denials as security events", func(t *testing.T) {
		aud, enqueuer := setupAuditor(t)
		orgID := uuid.New()

		err := aud.AccessDenied(ctx, orgID, "delete", "resident", "role does not permit deletes")
		require.NoError(t, err)

		event := lastEvent(t, enqueuer)
		assert.Equal(t, auditor.KindSecurity, event.Kind)
		assert.Equal(t, "access.denied", event.Action)
		assert.Equal(t, "delete", event.Detail["attemptedAction"])
	})

	t.Run("Should carry the principal and request id from context", func(t *testing.T) {
		aud, enqueuer := setupAuditor(t)
		principalID := uuid.New()

		reqCtx := clcontext.InjectRequestID(ctx)
		reqCtx = clcontext.New(reqCtx, clcontext.WithPrincipal(principalID))

		err := aud.CrossTenantAttempt(reqCtx, uuid.New(), "resident", uuid.New())
		require.NoError(t, err)

		event := lastEvent(t, enqueuer)
		assert.Equal(t, principalID, event.PrincipalID)
		assert.NotEmpty(t, event.RequestID)
	})

	t.Run("Should wrap enqueue failures", func(t *testing.T) {
		aud, enqueuer := setupAuditor(t)
		enqueuer.err = errors.New("queue down")

		err := aud.OrganizationSwitched(ctx, uuid.New())
		assert.ErrorIs(t, err, auditor.ErrSendEvent)
	})

	t.Run("Should skip events without an enqueuer", func(t *testing.T) {
		aud := auditor.New(nil, &config.Config{})

		err := aud.MembershipDeactivated(ctx, uuid.New(), uuid.New())
		assert.NoError(t, err)
	})
}
