package calls

import "time"

// CallAttempt is the durable record of one dispatch and its lifecycle.
//
// Ownership invariant: the dispatch service creates an attempt; after creation
// only the monitor (or an explicit manual refresh) moves its status. Attempts
// are never deleted except by the explicit bulk clear.
//
// Provider fields (transcript, recording, duration, cost) are filled in only
// when the monitor observes a terminal remote state.
type CallAttempt struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	Type        CallType `json:"type" db:"type"`
	AssistantID string   `json:"assistant_id" db:"assistant_id"`

	// TargetSummary is a short human-readable description of who was called,
	// e.g. "+15551234567" or "4 numbers".
	TargetSummary string `json:"target_summary" db:"target_summary"`

	ProviderCallID string     `json:"provider_call_id,omitempty" db:"provider_call_id"`
	Status         CallStatus `json:"status" db:"status"`
	Notes          string     `json:"notes,omitempty" db:"notes"`

	Transcript         string  `json:"transcript,omitempty" db:"transcript"`
	RecordingURL       string  `json:"recording_url,omitempty" db:"recording_url"`
	RecordingLocalPath string  `json:"recording_local_path,omitempty" db:"recording_local_path"`
	DurationSeconds    int     `json:"duration_seconds,omitempty" db:"duration_seconds"`
	Cost               float64 `json:"cost,omitempty" db:"cost"`
}

type CallType string

const (
	CallTypeSingle CallType = "single"
	CallTypeBulk   CallType = "bulk"
)

// CallStatus is the attempt state machine:
//
//	initiated -> in_progress -> {completed, failed}
//
// plus unknown when the tracking window expires without a single resolved
// poll. Terminal states never move backward; re-applying the same terminal
// state (manual refresh) is allowed and idempotent.
type CallStatus string

const (
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusUnknown    CallStatus = "unknown"
)

// Terminal reports whether no further transition is expected from s.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusUnknown:
		return true
	default:
		return false
	}
}

// CanTransitionTo enforces the no-backward rule: a terminal attempt may only
// re-confirm the same status.
func (s CallStatus) CanTransitionTo(next CallStatus) bool {
	if s.Terminal() {
		return s == next
	}
	return true
}
