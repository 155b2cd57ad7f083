package crm

import (
	"context"
	"errors"
	"testing"
	"time"
)

var fixedNow = time.Unix(1700000000, 0).UTC()

func newTestService() *Service {
	svc := NewService(NewMemoryRepo())
	svc.clock = func() time.Time { return fixedNow }
	return svc
}

func TestCreate_ValidatesPhone(t *testing.T) {
	svc := newTestService()

	if _, err := svc.Create(context.Background(), Customer{Name: "Ada", Phone: "not-a-number"}); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	if _, err := svc.Create(context.Background(), Customer{Name: "Ada", Phone: "5551234567"}); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone for missing plus, got %v", err)
	}
}

func TestCreate_NormalizesAndPersists(t *testing.T) {
	svc := newTestService()

	c, err := svc.Create(context.Background(), Customer{
		Name:    "Ada",
		Phone:   " +1 (555) 123-4567 ",
		Email:   "ada@example.com",
		Company: "Analytical Engines",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.ID == "" {
		t.Fatalf("expected generated id")
	}
	if c.Phone != "+15551234567" {
		t.Fatalf("expected normalized phone, got %q", c.Phone)
	}
	if !c.CreatedAt.Equal(fixedNow) {
		t.Fatalf("expected clock timestamp, got %v", c.CreatedAt)
	}

	got, err := svc.Get(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Phone != c.Phone || got.Company != "Analytical Engines" {
		t.Fatalf("unexpected persisted customer: %+v", got)
	}
}

func TestList_OrderedByCreation(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := fixedNow
	svc.clock = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	first, err := svc.Create(context.Background(), Customer{Name: "First", Phone: "+15551110001"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	second, err := svc.Create(context.Background(), Customer{Name: "Second", Phone: "+15551110002"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(list))
	}
	if list[0].ID != first.ID || list[1].ID != second.ID {
		t.Fatalf("expected creation order, got %v then %v", list[0].Name, list[1].Name)
	}
}

func TestDelete_Unknown(t *testing.T) {
	svc := newTestService()
	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCallTargets_PreservesOrderAndFailsOnUnknown(t *testing.T) {
	svc := newTestService()

	a, err := svc.Create(context.Background(), Customer{Name: "A", Phone: "+15551110001", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	b, err := svc.Create(context.Background(), Customer{Name: "B", Phone: "+15551110002"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	targets, skipped, err := svc.CallTargets(context.Background(), []string{b.ID, a.ID})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("expected no skips, got %v", skipped)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if targets[0].Number != "+15551110002" || targets[1].Number != "+15551110001" {
		t.Fatalf("expected requested order, got %+v", targets)
	}
	if targets[1].Email != "a@example.com" {
		t.Fatalf("expected email carried, got %+v", targets[1])
	}

	if _, _, err := svc.CallTargets(context.Background(), []string{a.ID, "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCallTargets_SkipsCorruptNumbers(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.clock = func() time.Time { return fixedNow }

	good, err := svc.Create(context.Background(), Customer{Name: "Good", Phone: "+15551110001"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	// Simulate legacy data that predates validation.
	bad := Customer{ID: "legacy", CreatedAt: fixedNow, Name: "Bad", Phone: "12345"}
	if err := repo.Upsert(context.Background(), bad); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	targets, skipped, err := svc.CallTargets(context.Background(), []string{good.ID, bad.ID})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(targets) != 1 || targets[0].Number != "+15551110001" {
		t.Fatalf("expected only valid target, got %+v", targets)
	}
	if len(skipped) != 1 || skipped[0] != "legacy" {
		t.Fatalf("expected legacy skipped, got %v", skipped)
	}
}
