package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"voicedash/pkg/logger"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
	ListByAttempt(ctx context.Context, attemptID string) ([]Event, error)
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// Record logs a lifecycle event for a call attempt. It satisfies the auditor
// contract used by the dispatch and monitoring services.
func (s *Service) Record(ctx context.Context, attemptID, eventType, message string) error {
	return s.Append(ctx, Event{
		AttemptID: attemptID,
		Type:      EventType(eventType),
		Message:   message,
	})
}

// Trail returns all events recorded for a call attempt, oldest first.
func (s *Service) Trail(ctx context.Context, attemptID string) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	return s.repo.ListByAttempt(ctx, attemptID)
}

// BestEffort adapts Service to the fire-and-forget auditor contract used by
// the dispatch and monitoring services. Append failures are logged and dropped.
type BestEffort struct {
	Svc *Service
}

func (b BestEffort) Record(ctx context.Context, attemptID, eventType, message string) {
	if b.Svc == nil {
		return
	}
	if err := b.Svc.Record(ctx, attemptID, eventType, message); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", eventType, "err", err)
	}
}
