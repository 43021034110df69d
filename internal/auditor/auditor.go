package auditor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/errs"
	"github.com/careloop/careloop/internal/log"
	clcontext "github.com/careloop/careloop/utils/context"
)

// TaskTypeDeliver is the asynq task type carrying a serialized audit event.
const TaskTypeDeliver = "audit:deliver"

var (
	ErrCreateEvent = errors.New("failed to create audit event")
	ErrSendEvent   = errors.New("failed to send audit event")
	ErrNilAuditor  = errors.New("auditor is nil")
)

// Kind separates routine business records from security relevant ones.
type Kind string

const (
	KindBusiness Kind = "BUSINESS"
	KindSecurity Kind = "SECURITY"
)

// Event is the wire form of an audit record. Security events carry the
// denial reason; business events carry the acting membership's organization.
type Event struct {
	Kind           Kind              `json:"kind"`
	Action         string            `json:"action"`
	RequestID      string            `json:"requestId,omitempty"`
	PrincipalID    uuid.UUID         `json:"principalId,omitempty"`
	OrganizationID uuid.UUID         `json:"organizationId,omitempty"`
	ResourceKind   string            `json:"resourceKind,omitempty"`
	ResourceID     uuid.UUID         `json:"resourceId,omitempty"`
	Detail         map[string]string `json:"detail,omitempty"`
	OccurredAt     time.Time         `json:"occurredAt"`
}

// Enqueuer hands events to the async delivery queue.
type Enqueuer interface {
	EnqueueTask(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Auditor records business and security audit events for care operations.
// Delivery is asynchronous so a slow sink never blocks the request path.
type Auditor struct {
	enqueuer Enqueuer
	queue    string
}

// New creates a new Auditor instance
func New(enqueuer Enqueuer, cfg *config.Config) *Auditor {
	return &Auditor{
		enqueuer: enqueuer,
		queue:    cfg.Audit.QueueName,
	}
}

// OrganizationCreated records the creation of a tenant.
func (a *Auditor) OrganizationCreated(ctx context.Context, orgID uuid.UUID, name string) error {
	return a.emit(ctx, Event{
		Kind:           KindBusiness,
		Action:         "organization.created",
		OrganizationID: orgID,
		Detail:         map[string]string{"name": name},
	})
}

// MembershipCreated records a principal joining an organization.
func (a *Auditor) MembershipCreated(ctx context.Context, orgID, principalID uuid.UUID, role string) error {
	return a.emit(ctx, Event{
		Kind:           KindBusiness,
		Action:         "membership.created",
		OrganizationID: orgID,
		Detail: map[string]string{
			"principalId": principalID.String(),
			"role":        role,
		},
	})
}

// MembershipDeactivated records a membership being revoked.
func (a *Auditor) MembershipDeactivated(ctx context.Context, orgID, principalID uuid.UUID) error {
	return a.emit(ctx, Event{
		Kind:           KindBusiness,
		Action:         "membership.deactivated",
		OrganizationID: orgID,
		Detail:         map[string]string{"principalId": principalID.String()},
	})
}

// OrganizationSwitched records a principal switching their active tenant.
func (a *Auditor) OrganizationSwitched(ctx context.Context, orgID uuid.UUID) error {
	return a.emit(ctx, Event{
		Kind:           KindBusiness,
		Action:         "session.switched",
		OrganizationID: orgID,
	})
}

// AccessDenied records a role policy denial.
func (a *Auditor) AccessDenied(ctx context.Context, orgID uuid.UUID, action, resourceKind, reason string) error {
	return a.emit(ctx, Event{
		Kind:           KindSecurity,
		Action:         "access.denied",
		OrganizationID: orgID,
		ResourceKind:   resourceKind,
		Detail: map[string]string{
			"attemptedAction": action,
			"reason":          reason,
		},
	})
}

// CrossTenantAttempt records a single record access that resolved outside
// the caller's active organization. The caller is shown a not-found, the
// trail still names the record that was touched.
func (a *Auditor) CrossTenantAttempt(ctx context.Context, activeOrg uuid.UUID, resourceKind string, resourceID uuid.UUID) error {
	return a.emit(ctx, Event{
		Kind:           KindSecurity,
		Action:         "access.cross_tenant",
		OrganizationID: activeOrg,
		ResourceKind:   resourceKind,
		ResourceID:     resourceID,
	})
}

// MigrationStepCompleted records a tenant migration step finishing.
func (a *Auditor) MigrationStepCompleted(ctx context.Context, environment, step string) error {
	return a.emit(ctx, Event{
		Kind:   KindBusiness,
		Action: "migration.step_completed",
		Detail: map[string]string{
			"environment": environment,
			"step":        step,
		},
	})
}

func (a *Auditor) emit(ctx context.Context, event Event) error {
	if a == nil {
		return ErrNilAuditor
	}

	if a.enqueuer == nil {
		log.Warn(ctx, "audit enqueuer not available, skipping audit event")

		return nil
	}

	event.OccurredAt = time.Now().UTC()

	if requestID, err := clcontext.GetRequestID(ctx); err == nil {
		event.RequestID = requestID
	}

	if principalID, err := clcontext.ExtractPrincipal(ctx); err == nil {
		event.PrincipalID = principalID
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(ErrCreateEvent, err)
	}

	task := asynq.NewTask(TaskTypeDeliver, payload, asynq.Queue(a.queue))

	_, err = a.enqueuer.EnqueueTask(ctx, task)
	if err != nil {
		return errs.Wrap(ErrSendEvent, err)
	}

	return nil
}
