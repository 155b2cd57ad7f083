package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicedash/internal/calls"
	"voicedash/internal/vapi"
	"voicedash/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Poller fetches call status/detail from the provider. Satisfied by
// *vapi.Client.
type Poller interface {
	GetCall(ctx context.Context, providerCallID string) (vapi.CallDetail, error)
}

// PollResult is the outcome of one poll, local status already mapped.
type PollResult struct {
	Status        calls.CallStatus `json:"status"`
	RemoteStatus  string           `json:"remote_status"`
	Terminal      bool             `json:"terminal"`
	HasTranscript bool             `json:"has_transcript"`
	HasRecording  bool             `json:"has_recording"`
	Detail        vapi.CallDetail  `json:"detail"`
}

// Config controls the monitoring loop.
type Config struct {
	PollInterval   time.Duration // default 5s
	TrackingWindow time.Duration // default 5m
	SweepSchedule  string        // cron spec, default "*/10 * * * *"
}

// Monitor drives the per-call lifecycle state machine:
//
//	Tracking(startedAt) -> Resolved(terminal remote status) -> removed
//	Tracking(startedAt) -> Expired(window exceeded)         -> removed
//
// Expiry is not failure: absence of confirmation is not proof of failure, so
// an expired attempt keeps its last observed status. Only when the window
// closes without a single successful poll is the attempt marked unknown.
type Monitor struct {
	registry *Registry
	poller   Poller
	store    calls.Store
	auditor  calls.Auditor

	interval time.Duration
	window   time.Duration
	sweep    cron.Schedule

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func New(registry *Registry, poller Poller, store calls.Store, auditor calls.Auditor, cfg Config) (*Monitor, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.TrackingWindow <= 0 {
		cfg.TrackingWindow = 5 * time.Minute
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "*/10 * * * *"
	}
	sched, err := cron.ParseStandard(cfg.SweepSchedule)
	if err != nil {
		return nil, fmt.Errorf("monitor: parse sweep schedule: %w", err)
	}
	return &Monitor{
		registry: registry,
		poller:   poller,
		store:    store,
		auditor:  auditor,
		interval: cfg.PollInterval,
		window:   cfg.TrackingWindow,
		sweep:    sched,
		clock:    time.Now,
	}, nil
}

// Track registers a provider call id. Implements calls.Tracker.
func (m *Monitor) Track(providerCallID, attemptID string) {
	m.registry.Add(providerCallID, attemptID, m.clock().UTC())
}

// Cancel stops tracking an id. Always safe; monitoring is observational and
// never mutates remote call state.
func (m *Monitor) Cancel(providerCallID string) {
	m.registry.Remove(providerCallID)
}

// Run polls the active set on a ticker until ctx is done. The cron-scheduled
// sweep is a safety net that expires entries even when polls keep erroring.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	nextSweep := m.sweep.Next(m.clock())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.PollActive(ctx)
			if now := m.clock(); now.After(nextSweep) {
				m.SweepExpired(ctx)
				nextSweep = m.sweep.Next(now)
			}
		}
	}
}

// PollActive polls every tracked call once.
func (m *Monitor) PollActive(ctx context.Context) {
	for _, tr := range m.registry.Snapshot() {
		m.pollOne(ctx, tr)
	}
}

func (m *Monitor) pollOne(ctx context.Context, tr Tracked) {
	log := logger.From(ctx)

	detail, err := m.poller.GetCall(ctx, tr.ProviderCallID)
	now := m.clock().UTC()
	if err != nil {
		// no retry policy: the id stays in the set and the next tick
		// retries naturally
		log.Warn("poll failed", "provider_call_id", tr.ProviderCallID, "err", err)
		if now.Sub(tr.StartedAt) > m.window {
			m.expire(ctx, tr)
		}
		return
	}

	m.registry.RecordPoll(tr.ProviderCallID, detail.Status)

	if detail.Terminal() {
		m.resolve(ctx, tr, detail)
		m.registry.Remove(tr.ProviderCallID)
		return
	}

	if st := localStatus(detail.Status); st == calls.CallStatusInProgress {
		m.markInProgress(ctx, tr)
	}
	if now.Sub(tr.StartedAt) > m.window {
		// re-read: RecordPoll above bumped the observation count
		if cur, ok := m.registry.Get(tr.ProviderCallID); ok {
			m.expire(ctx, cur)
		}
	}
}

// Refresh is a single forced poll, usable at any time, including after the
// call has already resolved: re-applying the same terminal state is harmless.
func (m *Monitor) Refresh(ctx context.Context, providerCallID string) (PollResult, error) {
	detail, err := m.poller.GetCall(ctx, providerCallID)
	if err != nil {
		return PollResult{}, err
	}

	res := PollResult{
		Status:        localStatus(detail.Status),
		RemoteStatus:  detail.Status,
		Terminal:      detail.Terminal(),
		HasTranscript: detail.HasTranscript(),
		HasRecording:  detail.HasRecording(),
		Detail:        detail,
	}

	tr, tracked := m.registry.Get(providerCallID)
	if !tracked {
		// resolved or never tracked here; look the attempt up in the store
		a, err := m.store.GetByProviderCallID(ctx, providerCallID)
		if err != nil {
			if errors.Is(err, calls.ErrNotFound) {
				return res, nil
			}
			return res, err
		}
		tr = Tracked{ProviderCallID: providerCallID, AttemptID: a.ID}
	} else {
		m.registry.RecordPoll(providerCallID, detail.Status)
	}

	if detail.Terminal() {
		m.resolve(ctx, tr, detail)
		m.registry.Remove(providerCallID)
	} else if res.Status == calls.CallStatusInProgress {
		m.markInProgress(ctx, tr)
	}
	return res, nil
}

// SweepExpired expires every tracked call past the window.
func (m *Monitor) SweepExpired(ctx context.Context) {
	now := m.clock().UTC()
	for _, tr := range m.registry.Snapshot() {
		if now.Sub(tr.StartedAt) > m.window {
			m.expire(ctx, tr)
		}
	}
}

// resolve persists the terminal state and its artifacts. Read-modify-write
// keyed by attempt id; the transition guard makes repeats idempotent.
func (m *Monitor) resolve(ctx context.Context, tr Tracked, detail vapi.CallDetail) {
	log := logger.From(ctx)

	a, err := m.store.Get(ctx, tr.AttemptID)
	if err != nil {
		log.Error("load attempt for resolve", "attempt_id", tr.AttemptID, "err", err)
		return
	}

	next := calls.CallStatusCompleted
	if strings.EqualFold(detail.Status, "failed") {
		next = calls.CallStatusFailed
	}
	if !a.Status.CanTransitionTo(next) {
		log.Warn("refusing backward transition", "attempt_id", a.ID, "from", a.Status, "to", next)
		return
	}

	a.Status = next
	a.UpdatedAt = m.clock().UTC()
	a.Transcript = detail.TranscriptText()
	a.RecordingURL = detail.Recording()
	if d := detail.DurationSeconds(); d > 0 {
		a.DurationSeconds = d
	}
	if detail.Cost > 0 {
		a.Cost = detail.Cost
	}
	if detail.EndedReason != "" {
		a.Notes = detail.EndedReason
	}

	if err := m.store.Upsert(ctx, a); err != nil {
		log.Error("persist resolved attempt", "attempt_id", a.ID, "err", err)
		return
	}
	m.audit(ctx, a.ID, "call.resolved", fmt.Sprintf("status=%s transcript=%v recording=%v", next, detail.HasTranscript(), detail.HasRecording()))
}

// markInProgress moves a still-initiated attempt forward on the first
// in-progress observation.
func (m *Monitor) markInProgress(ctx context.Context, tr Tracked) {
	a, err := m.store.Get(ctx, tr.AttemptID)
	if err != nil || a.Status != calls.CallStatusInitiated {
		return
	}
	a.Status = calls.CallStatusInProgress
	a.UpdatedAt = m.clock().UTC()
	if err := m.store.Upsert(ctx, a); err != nil {
		logger.From(ctx).Error("persist in-progress attempt", "attempt_id", a.ID, "err", err)
	}
}

// expire removes an id from tracking without failing the attempt. The last
// observed status stands; unknown is applied only when nothing was ever
// observed.
func (m *Monitor) expire(ctx context.Context, tr Tracked) {
	log := logger.From(ctx)
	m.registry.Remove(tr.ProviderCallID)

	if tr.Polls == 0 {
		a, err := m.store.Get(ctx, tr.AttemptID)
		if err == nil && a.Status.CanTransitionTo(calls.CallStatusUnknown) && !a.Status.Terminal() {
			a.Status = calls.CallStatusUnknown
			a.UpdatedAt = m.clock().UTC()
			if err := m.store.Upsert(ctx, a); err != nil {
				log.Error("persist unknown attempt", "attempt_id", a.ID, "err", err)
			}
		}
	}

	log.Info("tracking window expired", "provider_call_id", tr.ProviderCallID, "last_status", tr.LastStatus, "polls", tr.Polls)
	m.audit(ctx, tr.AttemptID, "call.expired", "last status: "+tr.LastStatus)
}

func (m *Monitor) audit(ctx context.Context, attemptID, eventType, message string) {
	if m.auditor == nil {
		return
	}
	m.auditor.Record(ctx, attemptID, eventType, message)
}

// localStatus maps the provider vocabulary onto the attempt state machine.
func localStatus(remote string) calls.CallStatus {
	switch strings.ToLower(remote) {
	case "queued", "scheduled":
		return calls.CallStatusInitiated
	case "ringing", "in-progress", "forwarding":
		return calls.CallStatusInProgress
	case "failed":
		return calls.CallStatusFailed
	case "ended", "completed":
		return calls.CallStatusCompleted
	default:
		return calls.CallStatusUnknown
	}
}
