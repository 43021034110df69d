package tasks

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/careloop/careloop/internal/auditor"
	"github.com/careloop/careloop/internal/log"
)

// AuditWriter appends a serialized audit event to the durable sink.
type AuditWriter interface {
	Append(ctx context.Context, payload []byte) error
}

// AuditDeliverer persists queued audit events. A malformed payload fails the
// task permanently, a sink error lets asynq retry.
type AuditDeliverer struct {
	sink AuditWriter
}

func NewAuditDeliverer(sink AuditWriter) *AuditDeliverer {
	return &AuditDeliverer{sink: sink}
}

func (d *AuditDeliverer) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var event auditor.Event

	err := json.Unmarshal(task.Payload(), &event)
	if err != nil {
		log.Error(ctx, "failed to unmarshal audit payload", err)
		return asynq.SkipRetry
	}

	err = d.sink.Append(ctx, task.Payload())
	if err != nil {
		log.Error(ctx, "failed to append audit event", err)
		return err
	}

	return nil
}

func (d *AuditDeliverer) TaskType() string {
	return auditor.TaskTypeDeliver
}
