package docstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/careloop/careloop/internal/errs"
)

const auditLogKey = "audit:log"

var ErrAppendAudit = errors.New("failed to append audit entry")

// AuditLog is the append-only audit sink. Entries are pushed onto a Redis
// list by the async worker, ingestion into long term storage reads from the
// other end.
type AuditLog struct {
	client *redis.Client
}

func NewAuditLog(client *redis.Client) *AuditLog {
	return &AuditLog{client: client}
}

func (l *AuditLog) Append(ctx context.Context, payload []byte) error {
	err := l.client.RPush(ctx, auditLogKey, payload).Err()
	if err != nil {
		return errs.Wrap(ErrAppendAudit, err)
	}

	return nil
}

// Len returns the number of audit entries awaiting ingestion.
func (l *AuditLog) Len(ctx context.Context) (int64, error) {
	count, err := l.client.LLen(ctx, auditLogKey).Result()
	if err != nil {
		return 0, errs.Wrap(ErrAppendAudit, err)
	}

	return count, nil
}
