package crm

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and early development.
type MemoryRepo struct {
	mu        sync.Mutex
	customers map[string]Customer
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{customers: map[string]Customer{}}
}

func (r *MemoryRepo) Upsert(ctx context.Context, c Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers[c.ID] = c
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Customer, 0, len(r.customers))
	for _, c := range r.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[id]; !ok {
		return ErrNotFound
	}
	delete(r.customers, id)
	return nil
}
