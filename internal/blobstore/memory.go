package blobstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]int64),
	}
}

// PutObject seeds an object. Test helper, not part of Store.
func (s *MemoryStore) PutObject(path string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[path] = size
}

func (s *MemoryStore) ListPrefix(_ context.Context, prefix string) ([]ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var objects []ObjectInfo

	for path, size := range s.objects {
		if strings.HasPrefix(path, prefix) {
			objects = append(objects, ObjectInfo{Path: path, Size: size})
		}
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Path < objects[j].Path
	})

	return objects, nil
}

func (s *MemoryStore) Move(_ context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	size, ok := s.objects[src]
	if !ok {
		return ErrObjectNotFound
	}

	s.objects[dst] = size
	delete(s.objects, src)

	return nil
}

func (s *MemoryStore) Stat(_ context.Context, path string) (ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	size, ok := s.objects[path]
	if !ok {
		return ObjectInfo{}, ErrObjectNotFound
	}

	return ObjectInfo{Path: path, Size: size}, nil
}
