package audit

import "time"

// Event is an immutable, append-only record of a call lifecycle transition.
//
// Invariants:
// - Events are never updated or deleted.
// - Capture is best-effort; signaling flows must not block on audit failures.
// - Events are internal-only and never rendered into participant views.
type Event struct {
	ID string `json:"id"`

	// Type indicates the lifecycle category of the record.
	Type EventType `json:"type"`

	// CallID ties the event to a call session.
	CallID string `json:"call_id"`

	// ActorUserID is the authenticated user causing the event; empty for
	// events produced by the reaper.
	ActorUserID string `json:"actor_user_id,omitempty"`

	// FromStatus/ToStatus record the state machine edge, when applicable.
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeInvite     EventType = "call_invited"
	EventTypeTransition EventType = "call_transition"
	EventTypeEnd        EventType = "call_ended"
)
