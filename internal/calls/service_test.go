package calls

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"voicedash/internal/target"
	"voicedash/internal/vapi"
)

type fakeDispatcher struct {
	resp    vapi.DispatchResponse
	err     error
	gotBody []byte
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, req vapi.CallRequest) (vapi.DispatchResponse, error) {
	f.gotBody = req.Body()
	return f.resp, f.err
}

type fakeTracker struct {
	tracked  map[string]string
	canceled []string
}

func newFakeTracker() *fakeTracker { return &fakeTracker{tracked: map[string]string{}} }

func (f *fakeTracker) Track(providerCallID, attemptID string) { f.tracked[providerCallID] = attemptID }
func (f *fakeTracker) Cancel(providerCallID string)           { f.canceled = append(f.canceled, providerCallID) }

func fixedClock() time.Time { return time.Unix(1700000000, 0).UTC() }

func TestDispatchSingle_PersistsAndTracks(t *testing.T) {
	store := NewMemoryStore()
	disp := &fakeDispatcher{resp: vapi.DispatchResponse{
		Calls: []vapi.ProviderCall{{ID: "c1", Status: "queued"}},
		Raw:   json.RawMessage(`{"id":"c1"}`),
	}}
	tracker := newFakeTracker()
	svc := NewService(store, disp, tracker, ServiceConfig{})
	svc.clock = fixedClock

	out, err := svc.DispatchSingle(context.Background(), "asst_1", "pn_1", target.CallTarget{Number: "+15551234567"}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out.Attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(out.Attempts))
	}
	a := out.Attempts[0]
	if a.Status != CallStatusInitiated {
		t.Fatalf("new attempt must start initiated, got %s", a.Status)
	}
	if a.ProviderCallID != "c1" || a.Type != CallTypeSingle {
		t.Fatalf("unexpected attempt: %+v", a)
	}
	if a.TargetSummary != "+15551234567" {
		t.Fatalf("unexpected summary %q", a.TargetSummary)
	}
	if tracker.tracked["c1"] != a.ID {
		t.Fatalf("dispatch must register the provider call for monitoring")
	}

	stored, err := store.Get(context.Background(), a.ID)
	if err != nil || stored.Status != CallStatusInitiated {
		t.Fatalf("attempt must be persisted at dispatch time: %v %+v", err, stored)
	}

	// single-target payload must use the singular field
	var m map[string]any
	if err := json.Unmarshal(disp.gotBody, &m); err != nil {
		t.Fatalf("body: %v", err)
	}
	if _, ok := m["customer"]; !ok {
		t.Fatalf("expected singular customer payload")
	}
}

func TestDispatchBulk_OneAttemptPerProviderCall(t *testing.T) {
	store := NewMemoryStore()
	disp := &fakeDispatcher{resp: vapi.DispatchResponse{
		Calls: []vapi.ProviderCall{{ID: "c1"}, {ID: "c2"}},
	}}
	tracker := newFakeTracker()
	svc := NewService(store, disp, tracker, ServiceConfig{})
	svc.clock = fixedClock

	targets := []target.CallTarget{{Number: "+15551234567"}, {Number: "+15557654321"}}
	out, err := svc.DispatchBulk(context.Background(), "asst_1", "pn_1", targets, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out.Attempts) != 2 {
		t.Fatalf("expected one attempt per provider call, got %d", len(out.Attempts))
	}
	if out.Attempts[0].TargetSummary != "+15551234567" || out.Attempts[1].TargetSummary != "+15557654321" {
		t.Fatalf("per-call summaries should line up with targets: %+v", out.Attempts)
	}
	if len(tracker.tracked) != 2 {
		t.Fatalf("both provider calls must be tracked independently")
	}
	for _, a := range out.Attempts {
		if a.Type != CallTypeBulk {
			t.Fatalf("expected bulk type, got %s", a.Type)
		}
	}
}

func TestDispatch_FailureRecordedInHistory(t *testing.T) {
	store := NewMemoryStore()
	disp := &fakeDispatcher{err: &vapi.Error{Kind: vapi.KindConnection, Message: "connection error: unable to reach the API"}}
	svc := NewService(store, disp, newFakeTracker(), ServiceConfig{})
	svc.clock = fixedClock

	out, err := svc.DispatchSingle(context.Background(), "a", "p", target.CallTarget{Number: "+15551234567"}, nil)
	pe, ok := vapi.AsError(err)
	if !ok || pe.Kind != vapi.KindConnection {
		t.Fatalf("classification must survive the service layer, got %v", err)
	}
	if len(out.Attempts) != 1 || out.Attempts[0].Status != CallStatusFailed {
		t.Fatalf("failed dispatch must still land in history: %+v", out.Attempts)
	}
	if out.Attempts[0].Notes == "" {
		t.Fatalf("failure message must be kept on the attempt")
	}

	hist, err := store.List(context.Background(), 0)
	if err != nil || len(hist) != 1 {
		t.Fatalf("expected persisted failure, got %v %d", err, len(hist))
	}
}

func TestDispatch_EmptyTargetsRejectedBeforeNetwork(t *testing.T) {
	disp := &fakeDispatcher{}
	svc := NewService(NewMemoryStore(), disp, newFakeTracker(), ServiceConfig{})

	_, err := svc.DispatchBulk(context.Background(), "a", "p", nil, nil)
	if !errors.Is(err, vapi.ErrEmptyTargets) {
		t.Fatalf("expected ErrEmptyTargets, got %v", err)
	}
	if disp.gotBody != nil {
		t.Fatalf("nothing may be sent for a structurally invalid request")
	}
}

func TestHistoryAndClear(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, &fakeDispatcher{resp: vapi.DispatchResponse{Calls: []vapi.ProviderCall{{ID: "c1"}}}}, newFakeTracker(), ServiceConfig{})
	svc.clock = fixedClock

	if _, err := svc.DispatchSingle(context.Background(), "a", "p", target.CallTarget{Number: "+15551234567"}, nil); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	hist, err := svc.History(context.Background(), 10)
	if err != nil || len(hist) != 1 {
		t.Fatalf("expected 1 history row, got %v %d", err, len(hist))
	}
	if err := svc.ClearHistory(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	hist, _ = svc.History(context.Background(), 10)
	if len(hist) != 0 {
		t.Fatalf("history must be empty after clear")
	}
}

func TestCancelDelegatesToTracker(t *testing.T) {
	tracker := newFakeTracker()
	svc := NewService(NewMemoryStore(), &fakeDispatcher{}, tracker, ServiceConfig{})
	svc.Cancel("c9")
	if len(tracker.canceled) != 1 || tracker.canceled[0] != "c9" {
		t.Fatalf("cancel must remove the id from tracking: %+v", tracker.canceled)
	}
}
