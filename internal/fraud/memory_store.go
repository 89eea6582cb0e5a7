package fraud

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for demo and test use.
type MemoryStore struct {
	mu          sync.RWMutex
	assessments map[string][]*Assessment // accountNum -> assessments, oldest first
}

// NewMemoryStore creates an in-memory assessment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assessments: make(map[string][]*Assessment),
	}
}

func (s *MemoryStore) Record(ctx context.Context, a *Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assessments[a.AccountNum] = append(s.assessments[a.AccountNum], copyAssessment(a))
	return nil
}

func (s *MemoryStore) ListByAccount(ctx context.Context, accountNum string, limit int) ([]*Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.assessments[accountNum]
	if len(all) == 0 {
		return nil, nil
	}

	start := len(all) - limit
	if start < 0 {
		start = 0
	}

	// Most recent first.
	result := make([]*Assessment, 0, len(all)-start)
	for i := len(all) - 1; i >= start; i-- {
		result = append(result, copyAssessment(all[i]))
	}
	return result, nil
}

// copyAssessment deep-copies so callers cannot mutate stored records.
func copyAssessment(a *Assessment) *Assessment {
	c := *a
	c.Signals = make([]SignalResult, len(a.Signals))
	copy(c.Signals, a.Signals)
	return &c
}
