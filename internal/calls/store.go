package calls

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("calls: attempt not found")

// Store is the durable record of call attempts.
//
// Rules:
// - Upsert is keyed by attempt id and must be atomic.
// - List returns newest first.
// - Clear is the only bulk deletion; single attempts are never deleted.
type Store interface {
	Upsert(ctx context.Context, a CallAttempt) error
	Get(ctx context.Context, id string) (CallAttempt, error)
	GetByProviderCallID(ctx context.Context, providerCallID string) (CallAttempt, error)
	List(ctx context.Context, limit int) ([]CallAttempt, error)
	Clear(ctx context.Context) error
}
