package docstore

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/careloop/careloop/internal/errs"
)

const (
	recordKeyPrefix = "doc:"
	untaggedSetKey  = "docs:untagged"
	tenantSetPrefix = "docs:org:"
)

// RedisStore keeps document records as JSON values with set based tenant
// indexes. A record id is a member of exactly one index set: the untagged set
// before backfill, its tenant set after.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func recordKey(id uuid.UUID) string {
	return recordKeyPrefix + id.String()
}

func tenantSetKey(orgID uuid.UUID) string {
	return tenantSetPrefix + orgID.String()
}

func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return errs.Wrap(ErrPutRecord, err)
	}

	indexKey := untaggedSetKey
	if rec.Tagged() {
		indexKey = tenantSetKey(rec.OrganizationID)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey(rec.ID), payload, 0)
		pipe.SAdd(ctx, indexKey, rec.ID.String())

		return nil
	})
	if err != nil {
		return errs.Wrap(ErrPutRecord, err)
	}

	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	payload, err := s.client.Get(ctx, recordKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Record{}, ErrRecordNotFound
		}

		return Record{}, errs.Wrap(ErrListRecords, err)
	}

	var rec Record

	err = json.Unmarshal(payload, &rec)
	if err != nil {
		return Record{}, errs.Wrap(ErrListRecords, err)
	}

	return rec, nil
}

// TagTenant stamps the record with its tenant and moves it from the untagged
// index to the tenant index. Re-tagging with the same tenant is a no-op, so
// interrupted backfill batches can be replayed.
func (s *RedisStore) TagTenant(ctx context.Context, id, orgID uuid.UUID) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if rec.OrganizationID == orgID {
		return nil
	}

	previousIndex := untaggedSetKey
	if rec.Tagged() {
		previousIndex = tenantSetKey(rec.OrganizationID)
	}

	rec.OrganizationID = orgID

	payload, err := json.Marshal(rec)
	if err != nil {
		return errs.Wrap(ErrTagRecord, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey(id), payload, 0)
		pipe.SRem(ctx, previousIndex, id.String())
		pipe.SAdd(ctx, tenantSetKey(orgID), id.String())

		return nil
	})
	if err != nil {
		return errs.Wrap(ErrTagRecord, err)
	}

	return nil
}

// Untag is the inverse of TagTenant, used only by the migration rollback
// path before constraints are tightened.
func (s *RedisStore) Untag(ctx context.Context, id uuid.UUID) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if !rec.Tagged() {
		return nil
	}

	previousIndex := tenantSetKey(rec.OrganizationID)
	rec.OrganizationID = uuid.Nil

	payload, err := json.Marshal(rec)
	if err != nil {
		return errs.Wrap(ErrTagRecord, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey(id), payload, 0)
		pipe.SRem(ctx, previousIndex, id.String())
		pipe.SAdd(ctx, untaggedSetKey, id.String())

		return nil
	})
	if err != nil {
		return errs.Wrap(ErrTagRecord, err)
	}

	return nil
}

func (s *RedisStore) ListByTenant(ctx context.Context, orgID uuid.UUID) ([]Record, error) {
	return s.listSet(ctx, tenantSetKey(orgID), 0)
}

func (s *RedisStore) ListUntagged(ctx context.Context, limit int64) ([]Record, error) {
	return s.listSet(ctx, untaggedSetKey, limit)
}

func (s *RedisStore) CountByTenant(ctx context.Context, orgID uuid.UUID) (int64, error) {
	count, err := s.client.SCard(ctx, tenantSetKey(orgID)).Result()
	if err != nil {
		return 0, errs.Wrap(ErrListRecords, err)
	}

	return count, nil
}

func (s *RedisStore) CountUntagged(ctx context.Context) (int64, error) {
	count, err := s.client.SCard(ctx, untaggedSetKey).Result()
	if err != nil {
		return 0, errs.Wrap(ErrListRecords, err)
	}

	return count, nil
}

func (s *RedisStore) listSet(ctx context.Context, key string, limit int64) ([]Record, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, errs.Wrap(ErrListRecords, err)
	}

	records := make([]Record, 0, len(members))

	for _, member := range members {
		if limit > 0 && int64(len(records)) >= limit {
			break
		}

		id, err := uuid.Parse(member)
		if err != nil {
			return nil, errs.Wrap(ErrListRecords, err)
		}

		rec, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, nil
}
