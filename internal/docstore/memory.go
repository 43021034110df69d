package docstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]Record),
	}
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = rec

	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}

	return rec, nil
}

func (s *MemoryStore) TagTenant(_ context.Context, id, orgID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrRecordNotFound
	}

	rec.OrganizationID = orgID
	s.records[id] = rec

	return nil
}

func (s *MemoryStore) Untag(ctx context.Context, id uuid.UUID) error {
	return s.TagTenant(ctx, id, uuid.Nil)
}

func (s *MemoryStore) ListByTenant(_ context.Context, orgID uuid.UUID) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []Record

	for _, rec := range s.records {
		if rec.OrganizationID == orgID {
			records = append(records, rec)
		}
	}

	return records, nil
}

func (s *MemoryStore) ListUntagged(_ context.Context, limit int64) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []Record

	for _, rec := range s.records {
		if rec.Tagged() {
			continue
		}

		if limit > 0 && int64(len(records)) >= limit {
			break
		}

		records = append(records, rec)
	}

	return records, nil
}

func (s *MemoryStore) CountByTenant(ctx context.Context, orgID uuid.UUID) (int64, error) {
	records, err := s.ListByTenant(ctx, orgID)
	if err != nil {
		return 0, err
	}

	return int64(len(records)), nil
}

func (s *MemoryStore) CountUntagged(ctx context.Context) (int64, error) {
	records, err := s.ListUntagged(ctx, 0)
	if err != nil {
		return 0, err
	}

	return int64(len(records)), nil
}
