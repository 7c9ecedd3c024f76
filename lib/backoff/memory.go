package backoff

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local store for tests and single-worker setups.
type MemoryStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{expires: map[string]time.Time{}}
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.expires[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.expires, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) SetWithExpiry(ctx context.Context, key string, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires[key] = time.Now().Add(d)
	return nil
}
