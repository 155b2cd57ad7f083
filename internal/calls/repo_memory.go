package calls

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests and early development.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string]CallAttempt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: map[string]CallAttempt{}}
}

func (s *MemoryStore) Upsert(ctx context.Context, a CallAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[a.ID] = a
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (CallAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return CallAttempt{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) GetByProviderCallID(ctx context.Context, providerCallID string) (CallAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.ProviderCallID == providerCallID && providerCallID != "" {
			return a, nil
		}
	}
	return CallAttempt{}, ErrNotFound
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]CallAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallAttempt, 0, len(s.attempts))
	for _, a := range s.attempts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = map[string]CallAttempt{}
	return nil
}
