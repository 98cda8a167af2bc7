package repository

import (
	"sync"
	"time"
)

// invalidationStamps records the last mutation time per entity type. Cached
// readers compare against the stamp to decide whether their view is stale.
type invalidationStamps struct {
	mu     sync.RWMutex
	stamps map[string]time.Time
}

func newInvalidationStamps() *invalidationStamps {
	return &invalidationStamps{stamps: make(map[string]time.Time)}
}

func (s *invalidationStamps) touch(entityType string) {
	s.mu.Lock()
	s.stamps[entityType] = time.Now()
	s.mu.Unlock()
}

func (s *invalidationStamps) get(entityType string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.stamps[entityType]
	return t, ok
}
