package fraud

import (
	"context"
	"sync"
)

// MemoryStore keeps assessments in memory. Used in tests and when no
// database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	byUser map[string][]*Assessment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUser: make(map[string][]*Assessment)}
}

func (s *MemoryStore) Record(_ context.Context, assessment *Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *assessment
	cp.Alerts = append([]Alert(nil), assessment.Alerts...)
	s.byUser[assessment.UserID] = append(s.byUser[assessment.UserID], &cp)
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string, limit int) ([]*Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.byUser[userID]
	// Most recent first.
	out := make([]*Assessment, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		cp := *all[i]
		cp.Alerts = append([]Alert(nil), all[i].Alerts...)
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
