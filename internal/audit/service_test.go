package audit

import (
	"context"
	"testing"
	"time"
)

var fixedNow = time.Unix(1700000000, 0).UTC()

func TestService_AppendRequiresType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{AttemptID: "a1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_RecordAppendsImmutableEvent(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.clock = func() time.Time { return fixedNow }

	if err := svc.Record(context.Background(), "a1", string(EventTypeDispatched), "dispatched to provider"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].ID == "" {
		t.Fatalf("expected generated id")
	}
	if evs[0].Type != EventTypeDispatched {
		t.Fatalf("expected call.dispatched, got %q", evs[0].Type)
	}
	if !evs[0].CreatedAt.Equal(fixedNow) {
		t.Fatalf("expected clock timestamp, got %v", evs[0].CreatedAt)
	}
}

func TestService_TrailFiltersByAttempt(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Record(context.Background(), "a1", string(EventTypeDispatched), ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.Record(context.Background(), "a2", string(EventTypeDispatched), ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.Record(context.Background(), "a1", string(EventTypeResolved), "completed"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs, err := svc.Trail(context.Background(), "a1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("expected 2 events for a1, got %d", len(evs))
	}
	if evs[1].Type != EventTypeResolved {
		t.Fatalf("expected resolved last, got %q", evs[1].Type)
	}
}
