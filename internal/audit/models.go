package audit

import "time"

// Event is an immutable, append-only audit log record for call lifecycle
// activity.
//
// Invariants:
// - Events are never updated or deleted.
// - Audit failures must not block dispatch or monitoring flows.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// AttemptID links the event to a call attempt when applicable.
	AttemptID string `json:"attempt_id,omitempty" db:"attempt_id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeDispatched      EventType = "call.dispatched"
	EventTypeResolved        EventType = "call.resolved"
	EventTypeExpired         EventType = "call.expired"
	EventTypeRecordingFailed EventType = "call.recording_failed"
	EventTypeHistoryCleared  EventType = "history.cleared"
)
