package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"voicedash/internal/target"
	"voicedash/internal/vapi"
	"voicedash/pkg/logger"
	"voicedash/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrBulkCapExceeded = errors.New("calls: too many concurrent bulk dispatches")

// Dispatcher sends a built call request to the provider. Satisfied by
// *vapi.Client; narrowed to an interface so service tests can fake the
// provider without a network.
type Dispatcher interface {
	Dispatch(ctx context.Context, req vapi.CallRequest) (vapi.DispatchResponse, error)
}

// Tracker registers provider call ids for lifecycle monitoring. Cancel is
// always safe and has no remote side effect.
type Tracker interface {
	Track(providerCallID, attemptID string)
	Cancel(providerCallID string)
}

// Auditor records lifecycle events. Best-effort; audit failures never fail
// the operation being audited.
type Auditor interface {
	Record(ctx context.Context, attemptID, eventType, message string)
}

// ServiceConfig carries the optional collaborators.
type ServiceConfig struct {
	// Redis enables the bulk-dispatch concurrency cap when set.
	Redis                *redis.Client
	Auditor              Auditor
	BulkConcurrencyLimit int
	BulkCapTTL           time.Duration
}

// Service orchestrates dispatch: build payload, send, persist attempts,
// register monitoring. It owns attempt creation; status transitions after
// creation belong to the monitor.
type Service struct {
	store      Store
	dispatcher Dispatcher
	tracker    Tracker

	rdb       *redis.Client
	auditor   Auditor
	bulkLimit int
	capTTL    time.Duration

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(store Store, dispatcher Dispatcher, tracker Tracker, cfg ServiceConfig) *Service {
	if cfg.BulkConcurrencyLimit <= 0 {
		cfg.BulkConcurrencyLimit = 3
	}
	if cfg.BulkCapTTL <= 0 {
		cfg.BulkCapTTL = 2 * time.Minute
	}
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		tracker:    tracker,
		rdb:        cfg.Redis,
		auditor:    cfg.Auditor,
		bulkLimit:  cfg.BulkConcurrencyLimit,
		capTTL:     cfg.BulkCapTTL,
		clock:      time.Now,
	}
}

// DispatchOutcome is what a dispatch produced: the persisted attempts and the
// provider's raw response for display.
type DispatchOutcome struct {
	Attempts    []CallAttempt   `json:"attempts"`
	ProviderRaw json.RawMessage `json:"provider_raw,omitempty"`
}

// DispatchSingle places one outbound call.
func (s *Service) DispatchSingle(ctx context.Context, assistantID, phoneNumberID string, tgt target.CallTarget, window *vapi.ScheduleWindow) (DispatchOutcome, error) {
	return s.dispatch(ctx, CallTypeSingle, assistantID, phoneNumberID, []target.CallTarget{tgt}, window)
}

// DispatchBulk places calls to every target in one provider request. When
// redis is configured a concurrency-cap slot protects the provider account
// from unbounded parallel bulk jobs.
func (s *Service) DispatchBulk(ctx context.Context, assistantID, phoneNumberID string, targets []target.CallTarget, window *vapi.ScheduleWindow) (DispatchOutcome, error) {
	if s.rdb != nil {
		ok, err := utils.AcquireConcurrencyCap(ctx, s.rdb, "voicedash:bulk_dispatch", s.bulkLimit, s.capTTL)
		if err != nil {
			logger.From(ctx).Warn("bulk cap check failed, dispatching anyway", "err", err)
		} else if !ok {
			return DispatchOutcome{}, ErrBulkCapExceeded
		} else {
			defer func() {
				if err := utils.ReleaseConcurrencyCap(context.WithoutCancel(ctx), s.rdb, "voicedash:bulk_dispatch"); err != nil {
					logger.From(ctx).Warn("bulk cap release failed", "err", err)
				}
			}()
		}
	}
	return s.dispatch(ctx, CallTypeBulk, assistantID, phoneNumberID, targets, window)
}

func (s *Service) dispatch(ctx context.Context, typ CallType, assistantID, phoneNumberID string, targets []target.CallTarget, window *vapi.ScheduleWindow) (DispatchOutcome, error) {
	req, err := vapi.BuildCallRequest(assistantID, phoneNumberID, targets, window)
	if err != nil {
		// structural problem; nothing was sent, nothing to persist
		return DispatchOutcome{}, err
	}

	now := s.clock().UTC()
	resp, err := s.dispatcher.Dispatch(ctx, req)
	if err != nil {
		// the dispatch happened and failed; record it so the failure is
		// visible in history, classified message included
		a := CallAttempt{
			ID:            uuid.NewString(),
			CreatedAt:     now,
			UpdatedAt:     now,
			Type:          typ,
			AssistantID:   req.AssistantID,
			TargetSummary: SummarizeTargets(req.Targets),
			Status:        CallStatusFailed,
			Notes:         err.Error(),
		}
		if storeErr := s.store.Upsert(ctx, a); storeErr != nil {
			logger.From(ctx).Error("persist failed dispatch", "err", storeErr)
		}
		s.audit(ctx, a.ID, "call.dispatched", "dispatch failed: "+err.Error())
		return DispatchOutcome{Attempts: []CallAttempt{a}}, err
	}

	attempts := make([]CallAttempt, 0, len(resp.Calls))
	for i, pc := range resp.Calls {
		a := CallAttempt{
			ID:             uuid.NewString(),
			CreatedAt:      now,
			UpdatedAt:      now,
			Type:           typ,
			AssistantID:    req.AssistantID,
			TargetSummary:  summarizeFor(req.Targets, i, len(resp.Calls)),
			ProviderCallID: pc.ID,
			Status:         CallStatusInitiated,
		}
		if err := s.store.Upsert(ctx, a); err != nil {
			return DispatchOutcome{Attempts: attempts}, fmt.Errorf("calls: persist attempt: %w", err)
		}
		if pc.ID != "" {
			s.tracker.Track(pc.ID, a.ID)
		}
		s.audit(ctx, a.ID, "call.dispatched", "provider call "+pc.ID)
		attempts = append(attempts, a)
	}
	return DispatchOutcome{Attempts: attempts, ProviderRaw: resp.Raw}, nil
}

// Cancel stops monitoring a provider call id. Purely local.
func (s *Service) Cancel(providerCallID string) {
	s.tracker.Cancel(providerCallID)
}

// Attempt looks up one attempt by the provider's call id.
func (s *Service) Attempt(ctx context.Context, providerCallID string) (CallAttempt, error) {
	return s.store.GetByProviderCallID(ctx, providerCallID)
}

// History returns recent attempts, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]CallAttempt, error) {
	return s.store.List(ctx, limit)
}

// ClearHistory removes every attempt. The one bulk deletion allowed.
func (s *Service) ClearHistory(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.audit(ctx, "", "history.cleared", "")
	return nil
}

func (s *Service) audit(ctx context.Context, attemptID, eventType, message string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, attemptID, eventType, message)
}

// SummarizeTargets renders a short human-readable description of a target set.
func SummarizeTargets(targets []target.CallTarget) string {
	switch len(targets) {
	case 0:
		return ""
	case 1:
		return targets[0].Number
	default:
		return fmt.Sprintf("%d numbers", len(targets))
	}
}

// summarizeFor picks a per-attempt summary: when the provider returned one
// call per target the indexes line up; otherwise fall back to the set summary.
func summarizeFor(targets []target.CallTarget, i, total int) string {
	if total == len(targets) && i < len(targets) {
		return targets[i].Number
	}
	return SummarizeTargets(targets)
}
